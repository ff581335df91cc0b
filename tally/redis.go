// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/quickly-vote/models"
)

// TallyKey is the sorted set of option id -> vote count for a poll
func TallyKey(pollID string) string {
	return "poll:" + pollID + ":tally"
}

// ChannelName is the pub/sub channel carrying a poll's VoteMessages
func ChannelName(pollID string) string {
	return "poll:" + pollID + ":votes"
}

// Open parses a redis:// URL and verifies the server is reachable
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// RedisStore keeps live tallies in one sorted set per poll
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// IncrementOptionCount atomically applies delta and returns the new count
func (s *RedisStore) IncrementOptionCount(ctx context.Context, pollID, optionID string, delta int64) (int64, error) {
	score, err := s.rdb.ZIncrBy(ctx, TallyKey(pollID), float64(delta), optionID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment option %s: %w", optionID, err)
	}
	return int64(score), nil
}

// Counts returns option id -> count for a poll
func (s *RedisStore) Counts(ctx context.Context, pollID string) (map[string]int64, error) {
	members, err := s.rdb.ZRangeWithScores(ctx, TallyKey(pollID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tally: %w", err)
	}

	counts := make(map[string]int64, len(members))
	for _, m := range members {
		optionID, ok := m.Member.(string)
		if !ok {
			continue
		}
		counts[optionID] = int64(m.Score)
	}
	return counts, nil
}

// Attempts before ReplaceTally gives up on a busy tally key
const maxReplaceAttempts = 5

// ErrTallyBusy means every ReplaceTally attempt raced a live vote
var ErrTallyBusy = errors.New("tally changed during every replace attempt")

// ReplaceTally swaps the whole counter set for the counts load returns.
// The key is WATCHed before load runs, so a ZINCRBY landing between the
// count and the MULTI/EXEC aborts the swap and the count is taken again.
func (s *RedisStore) ReplaceTally(ctx context.Context, pollID string, load func(context.Context) (map[string]int64, error)) error {
	key := TallyKey(pollID)

	replace := func(tx *redis.Tx) error {
		counts, err := load(ctx)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(counts) == 0 {
				return nil
			}
			members := make([]redis.Z, 0, len(counts))
			for optionID, n := range counts {
				members = append(members, redis.Z{Score: float64(n), Member: optionID})
			}
			pipe.ZAdd(ctx, key, members...)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxReplaceAttempts; attempt++ {
		err := s.rdb.Watch(ctx, replace, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("failed to replace tally: %w", err)
		}
		slog.Debug("tally changed during replace, retrying", "poll_id", pollID, "attempt", attempt)
	}
	return fmt.Errorf("failed to replace tally for poll %s: %w", pollID, ErrTallyBusy)
}

// RedisBroadcaster fans VoteMessages out over Redis pub/sub.
// Delivery is fire-and-forget: subscribers that are not connected miss them.
type RedisBroadcaster struct {
	rdb *redis.Client
}

func NewRedisBroadcaster(rdb *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, pollID string, msg models.VoteMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode vote message: %w", err)
	}
	if err := b.rdb.Publish(ctx, ChannelName(pollID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish vote message: %w", err)
	}
	return nil
}

// Subscription delivers one poll's VoteMessages until closed
type Subscription struct {
	pubsub    *redis.PubSub
	messages  chan models.VoteMessage
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe returns once Redis has confirmed the subscription, so any
// message published afterwards is delivered.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, pollID string) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, ChannelName(pollID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to poll %s: %w", pollID, err)
	}

	sub := &Subscription{
		pubsub:   pubsub,
		messages: make(chan models.VoteMessage),
		done:     make(chan struct{}),
	}
	go sub.forward(pubsub.Channel())
	return sub, nil
}

// Messages is closed when the subscription is closed
func (s *Subscription) Messages() <-chan models.VoteMessage {
	return s.messages
}

func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func (s *Subscription) forward(ch <-chan *redis.Message) {
	defer close(s.messages)

	for {
		select {
		case <-s.done:
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg models.VoteMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				slog.Warn("dropping malformed vote message", "channel", m.Channel, "error", err)
				continue
			}
			select {
			case s.messages <- msg:
			case <-s.done:
				return
			}
		}
	}
}
