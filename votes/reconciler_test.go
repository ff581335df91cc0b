// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/danielhkuo/quickly-vote/models"
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int
	votes  map[string]models.Vote // keyed by session|poll

	findErr   error
	deleteErr error
	createErr error
	deletes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{votes: make(map[string]models.Vote)}
}

func (s *fakeStore) FindVoteBySessionAndPoll(_ context.Context, sessionID, pollID string) (*models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	v, ok := s.votes[sessionID+"|"+pollID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *fakeStore) DeleteVote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for k, v := range s.votes {
		if v.ID == id {
			delete(s.votes, k)
			s.deletes++
			return nil
		}
	}
	return ErrVoteNotFound
}

func (s *fakeStore) CreateVote(_ context.Context, sessionID, pollID, pollOptionID string) (models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return models.Vote{}, s.createErr
	}
	key := sessionID + "|" + pollID
	if _, ok := s.votes[key]; ok {
		return models.Vote{}, ErrDuplicateVote
	}
	s.nextID++
	v := models.Vote{
		ID:           fmt.Sprintf("vote-%d", s.nextID),
		SessionID:    sessionID,
		PollID:       pollID,
		PollOptionID: pollOptionID,
	}
	s.votes[key] = v
	return v, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes)
}

type fakeTally struct {
	mu     sync.Mutex
	counts map[string]int64 // keyed by poll|option
	err    error
}

func newFakeTally() *fakeTally {
	return &fakeTally{counts: make(map[string]int64)}
}

func (f *fakeTally) IncrementOptionCount(_ context.Context, pollID, optionID string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[pollID+"|"+optionID] += delta
	return f.counts[pollID+"|"+optionID], nil
}

func (f *fakeTally) get(pollID, optionID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[pollID+"|"+optionID]
}

type published struct {
	pollID string
	msg    models.VoteMessage
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (b *fakeBroadcaster) Publish(_ context.Context, pollID string, msg models.VoteMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, published{pollID, msg})
	return nil
}

func (b *fakeBroadcaster) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.messages...)
}

type fixture struct {
	store       *fakeStore
	tally       *fakeTally
	broadcaster *fakeBroadcaster
	reconciler  *Reconciler
}

func newFixture() *fixture {
	f := &fixture{
		store:       newFakeStore(),
		tally:       newFakeTally(),
		broadcaster: &fakeBroadcaster{},
	}
	f.reconciler = NewReconciler(f.store, f.tally, f.broadcaster)
	return f
}

func TestVote_FirstVoteMintsSession(t *testing.T) {
	f := newFixture()

	res, err := f.reconciler.Vote(context.Background(), Request{PollID: "P1", PollOptionID: "O1"})
	if err != nil {
		t.Fatalf("Vote() error = %v", err)
	}

	if !res.NewSession || res.SessionID == "" {
		t.Errorf("Expected a newly minted session, got %+v", res)
	}
	if res.Vote.SessionID != res.SessionID || res.Vote.PollOptionID != "O1" {
		t.Errorf("Vote stored with wrong fields: %+v", res.Vote)
	}
	if got := f.tally.get("P1", "O1"); got != 1 {
		t.Errorf("Expected tally 1, got %d", got)
	}

	msgs := f.broadcaster.all()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 broadcast, got %d", len(msgs))
	}
	want := published{"P1", models.VoteMessage{OptionID: "O1", NewCount: 1}}
	if msgs[0] != want {
		t.Errorf("Expected broadcast %+v, got %+v", want, msgs[0])
	}
}

func TestVote_ExistingSessionWithoutVoteKeepsSession(t *testing.T) {
	f := newFixture()

	res, err := f.reconciler.Vote(context.Background(), Request{PollID: "P1", PollOptionID: "O1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Vote() error = %v", err)
	}

	if res.NewSession || res.SessionID != "s1" {
		t.Errorf("Expected existing session to be reused, got %+v", res)
	}
	if f.store.count() != 1 {
		t.Errorf("Expected 1 vote row, got %d", f.store.count())
	}
}

func TestVote_SameOptionRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O1"})
	if err != nil {
		t.Fatalf("first Vote() error = %v", err)
	}

	res, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O1", SessionID: first.SessionID})
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("Expected ErrAlreadyVoted, got %v", err)
	}
	if res.NewSession {
		t.Error("A rejected vote must not mint a session")
	}

	if f.store.count() != 1 || f.store.deletes != 0 {
		t.Errorf("Durable record changed: rows=%d deletes=%d", f.store.count(), f.store.deletes)
	}
	if got := f.tally.get("P1", "O1"); got != 1 {
		t.Errorf("Tally changed on rejection: %d", got)
	}
	if n := len(f.broadcaster.all()); n != 1 {
		t.Errorf("Rejection must not broadcast, got %d messages total", n)
	}
}

func TestVote_SwitchOption(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O1"})
	if err != nil {
		t.Fatalf("first Vote() error = %v", err)
	}

	res, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O2", SessionID: first.SessionID})
	if err != nil {
		t.Fatalf("switch Vote() error = %v", err)
	}

	if res.ReplacedOptionID != "O1" {
		t.Errorf("Expected ReplacedOptionID O1, got %q", res.ReplacedOptionID)
	}
	if res.Vote.ID == first.Vote.ID {
		t.Error("Switch must create a new row rather than update in place")
	}
	if f.store.count() != 1 {
		t.Errorf("Expected exactly 1 vote row, got %d", f.store.count())
	}
	if got := f.tally.get("P1", "O1"); got != 0 {
		t.Errorf("Expected O1 tally 0, got %d", got)
	}
	if got := f.tally.get("P1", "O2"); got != 1 {
		t.Errorf("Expected O2 tally 1, got %d", got)
	}

	msgs := f.broadcaster.all()
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 broadcasts (1 first vote + 2 switch), got %d", len(msgs))
	}
	if msgs[1].msg != (models.VoteMessage{OptionID: "O1", NewCount: 0}) {
		t.Errorf("Expected decrement broadcast first, got %+v", msgs[1].msg)
	}
	if msgs[2].msg != (models.VoteMessage{OptionID: "O2", NewCount: 1}) {
		t.Errorf("Expected increment broadcast second, got %+v", msgs[2].msg)
	}
}

func TestVote_IndependentVoters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O1"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O1"})
	if err != nil {
		t.Fatal(err)
	}

	if a.SessionID == b.SessionID {
		t.Error("Independent voters must get distinct sessions")
	}
	if got := f.tally.get("P1", "O1"); got != 2 {
		t.Errorf("Expected tally 2, got %d", got)
	}
	msgs := f.broadcaster.all()
	if msgs[len(msgs)-1].msg.NewCount != 2 {
		t.Errorf("Expected last broadcast count 2, got %+v", msgs[len(msgs)-1].msg)
	}
}

func TestVote_SessionSpansPolls(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O1"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.reconciler.Vote(ctx, Request{PollID: "P2", PollOptionID: "X1", SessionID: first.SessionID})
	if err != nil {
		t.Fatalf("Vote on second poll error = %v", err)
	}

	if f.store.count() != 2 {
		t.Errorf("Expected one row per poll, got %d", f.store.count())
	}
}

func TestVote_DuplicateInsertIsConflict(t *testing.T) {
	f := newFixture()
	f.store.createErr = ErrDuplicateVote

	_, err := f.reconciler.Vote(context.Background(), Request{PollID: "P1", PollOptionID: "O1", SessionID: "s1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
	if got := f.tally.get("P1", "O1"); got != 0 {
		t.Errorf("Tally must not change on conflict, got %d", got)
	}
	if n := len(f.broadcaster.all()); n != 0 {
		t.Errorf("Expected no broadcasts, got %d", n)
	}
}

func TestVote_VanishedPriorVoteIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O1"})
	if err != nil {
		t.Fatal(err)
	}
	f.store.deleteErr = ErrVoteNotFound

	_, err = f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O2", SessionID: first.SessionID})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
	if got := f.tally.get("P1", "O1"); got != 1 {
		t.Errorf("Old option must not be decremented, got %d", got)
	}
}

func TestVote_UnknownOption(t *testing.T) {
	f := newFixture()
	f.store.createErr = fmt.Errorf("insert: %w", ErrUnknownOption)

	_, err := f.reconciler.Vote(context.Background(), Request{PollID: "P1", PollOptionID: "bogus"})
	if !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("Expected ErrUnknownOption, got %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Error("Unknown option must not be reported as retryable")
	}
}

func TestVote_CollaboratorFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("lookup failure", func(t *testing.T) {
		f := newFixture()
		f.store.findErr = boom

		_, err := f.reconciler.Vote(context.Background(), Request{PollID: "P1", PollOptionID: "O1", SessionID: "s1"})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected wrapped store error, got %v", err)
		}
		if f.store.count() != 0 {
			t.Error("Nothing should be written after a failed lookup")
		}
	})

	t.Run("tally failure keeps minted session", func(t *testing.T) {
		f := newFixture()
		f.tally.err = boom

		res, err := f.reconciler.Vote(context.Background(), Request{PollID: "P1", PollOptionID: "O1"})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected wrapped tally error, got %v", err)
		}
		if !res.NewSession || res.Vote.ID == "" {
			t.Errorf("Result should carry the session that owns the stored row, got %+v", res)
		}
		if n := len(f.broadcaster.all()); n != 0 {
			t.Errorf("Nothing should be broadcast when the tally update fails, got %d", n)
		}
	})

	t.Run("broadcast failure", func(t *testing.T) {
		f := newFixture()
		f.broadcaster.err = boom

		_, err := f.reconciler.Vote(context.Background(), Request{PollID: "P1", PollOptionID: "O1"})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected wrapped broadcast error, got %v", err)
		}
		if got := f.tally.get("P1", "O1"); got != 1 {
			t.Errorf("Tally update happens before broadcast, got %d", got)
		}
	})
}

func TestVote_TallyMatchesRowsAfterSequence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	options := []string{"O1", "O2", "O3"}

	sessions := make([]string, 4)
	for i := 0; i < 20; i++ {
		s := i % len(sessions)
		res, err := f.reconciler.Vote(ctx, Request{
			PollID:       "P1",
			PollOptionID: options[(i*7+s)%len(options)],
			SessionID:    sessions[s],
		})
		if err != nil && !errors.Is(err, ErrAlreadyVoted) {
			t.Fatalf("Vote() error = %v", err)
		}
		sessions[s] = res.SessionID
	}

	rows := make(map[string]int64)
	f.store.mu.Lock()
	for _, v := range f.store.votes {
		rows[v.PollOptionID]++
	}
	f.store.mu.Unlock()

	for _, opt := range options {
		if got := f.tally.get("P1", opt); got != rows[opt] {
			t.Errorf("Option %s: tally %d, rows %d", opt, got, rows[opt])
		}
	}
	if f.store.count() != len(sessions) {
		t.Errorf("Expected one row per session, got %d", f.store.count())
	}
}

func TestVote_ConcurrentSameSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.reconciler.Vote(ctx, Request{PollID: "P1", PollOptionID: "O1"})
	if err != nil {
		t.Fatal(err)
	}

	options := []string{"O1", "O2", "O3", "O4"}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.reconciler.Vote(ctx, Request{
				PollID:       "P1",
				PollOptionID: options[i%len(options)],
				SessionID:    first.SessionID,
			})
			if err != nil && !errors.Is(err, ErrAlreadyVoted) && !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if f.store.count() > 1 {
		t.Fatalf("Expected at most 1 vote row, got %d", f.store.count())
	}

	var total int64
	for _, opt := range options {
		total += f.tally.get("P1", opt)
	}
	if total != int64(f.store.count()) {
		t.Errorf("Tally total %d does not match row count %d", total, f.store.count())
	}
}
