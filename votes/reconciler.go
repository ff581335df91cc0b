// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickly-vote/auth"
	"github.com/danielhkuo/quickly-vote/models"
)

// How long a browser keeps its session cookie
const SessionMaxAge = 30 * 24 * time.Hour

// Upper bound on one tally update plus broadcast
const tallyTimeout = 5 * time.Second

var (
	// Business outcomes
	ErrAlreadyVoted = errors.New("already voted for this option")
	ErrConflict     = errors.New("vote changed concurrently")

	// Returned by VoteStore implementations
	ErrDuplicateVote = errors.New("vote already exists for session and poll")
	ErrVoteNotFound  = errors.New("vote not found")
	ErrUnknownOption = errors.New("option does not belong to poll")
)

// VoteStore is the durable record of votes, unique on (session, poll)
type VoteStore interface {
	// Returns nil, nil when the session has not voted on the poll
	FindVoteBySessionAndPoll(ctx context.Context, sessionID, pollID string) (*models.Vote, error)
	DeleteVote(ctx context.Context, id string) error
	CreateVote(ctx context.Context, sessionID, pollID, pollOptionID string) (models.Vote, error)
}

// TallyStore applies an atomic delta to one option's count and returns the new count
type TallyStore interface {
	IncrementOptionCount(ctx context.Context, pollID, optionID string, delta int64) (int64, error)
}

// Broadcaster publishes tally changes to a poll's live subscribers
type Broadcaster interface {
	Publish(ctx context.Context, pollID string, msg models.VoteMessage) error
}

type Request struct {
	PollID       string
	PollOptionID string
	SessionID    string // empty on a browser's first vote
}

type Result struct {
	SessionID  string
	NewSession bool // caller must persist SessionID for SessionMaxAge
	Vote       models.Vote

	// Set when the request moved the session's vote away from another option
	ReplacedOptionID string
}

type Reconciler struct {
	store       VoteStore
	tally       TallyStore
	broadcaster Broadcaster

	newSessionID func() string
}

func NewReconciler(store VoteStore, tally TallyStore, broadcaster Broadcaster) *Reconciler {
	return &Reconciler{
		store:        store,
		tally:        tally,
		broadcaster:  broadcaster,
		newSessionID: auth.NewSessionID,
	}
}

// Vote records a session's choice on a poll.
//
// Every durable write is followed by its own tally update and broadcast.
// The sequence is not atomic: when a tally step fails the error is returned
// as is, and Result still carries the minted session and the stored vote so
// the caller can hand the session to the browser that owns the row.
func (r *Reconciler) Vote(ctx context.Context, req Request) (Result, error) {
	res := Result{SessionID: req.SessionID}

	if req.SessionID != "" {
		prior, err := r.store.FindVoteBySessionAndPoll(ctx, req.SessionID, req.PollID)
		if err != nil {
			return res, fmt.Errorf("failed to find previous vote: %w", err)
		}

		if prior != nil {
			if prior.PollOptionID == req.PollOptionID {
				return res, ErrAlreadyVoted
			}

			// A concurrent request from the same session already replaced
			// this row; decrementing again would double count.
			if err := r.store.DeleteVote(ctx, prior.ID); err != nil {
				if errors.Is(err, ErrVoteNotFound) {
					return res, fmt.Errorf("%w: previous vote %s is gone", ErrConflict, prior.ID)
				}
				return res, fmt.Errorf("failed to delete previous vote: %w", err)
			}
			res.ReplacedOptionID = prior.PollOptionID

			if err := r.applyDelta(ctx, req.PollID, prior.PollOptionID, -1); err != nil {
				return res, err
			}
		}
	}

	if res.SessionID == "" {
		res.SessionID = r.newSessionID()
		res.NewSession = true
	}

	vote, err := r.store.CreateVote(ctx, res.SessionID, req.PollID, req.PollOptionID)
	if err != nil {
		if errors.Is(err, ErrDuplicateVote) {
			return res, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		if errors.Is(err, ErrUnknownOption) {
			return res, err
		}
		return res, fmt.Errorf("failed to create vote: %w", err)
	}
	res.Vote = vote

	if err := r.applyDelta(ctx, req.PollID, req.PollOptionID, 1); err != nil {
		return res, err
	}

	return res, nil
}

// applyDelta updates one option's tally then announces the new count.
// It runs after a committed durable write, so it must not be cut short by
// the caller going away.
func (r *Reconciler) applyDelta(ctx context.Context, pollID, optionID string, delta int64) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tallyTimeout)
	defer cancel()

	count, err := r.tally.IncrementOptionCount(ctx, pollID, optionID, delta)
	if err != nil {
		slog.Error("tally update failed after durable write",
			"poll_id", pollID, "option_id", optionID, "delta", delta, "error", err)
		return fmt.Errorf("failed to update tally: %w", err)
	}

	err = r.broadcaster.Publish(ctx, pollID, models.VoteMessage{
		OptionID: optionID,
		NewCount: count,
	})
	if err != nil {
		slog.Error("tally broadcast failed",
			"poll_id", pollID, "option_id", optionID, "count", count, "error", err)
		return fmt.Errorf("failed to broadcast tally: %w", err)
	}

	return nil
}
