// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votes

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// VoteCounter reads tallies from the durable record
type VoteCounter interface {
	ListPollIDs(ctx context.Context) ([]string, error)
	CountVotesByOption(ctx context.Context, pollID string) (map[string]int64, error)
}

// TallyWriter overwrites a poll's whole counter set with the counts load
// returns. Implementations retry load when the tally moves underneath it.
type TallyWriter interface {
	ReplaceTally(ctx context.Context, pollID string, load func(context.Context) (map[string]int64, error)) error
}

// Resyncer rebuilds live tallies from vote rows, repairing drift left by
// requests that failed between the durable write and the tally update.
type Resyncer struct {
	counter VoteCounter
	tally   TallyWriter
}

func NewResyncer(counter VoteCounter, tally TallyWriter) *Resyncer {
	return &Resyncer{counter: counter, tally: tally}
}

// ResyncPoll replaces one poll's tally with the durable counts
func (s *Resyncer) ResyncPoll(ctx context.Context, pollID string) error {
	load := func(ctx context.Context) (map[string]int64, error) {
		counts, err := s.counter.CountVotesByOption(ctx, pollID)
		if err != nil {
			return nil, fmt.Errorf("failed to count votes for poll %s: %w", pollID, err)
		}
		return counts, nil
	}
	if err := s.tally.ReplaceTally(ctx, pollID, load); err != nil {
		return fmt.Errorf("failed to resync poll %s: %w", pollID, err)
	}
	return nil
}

// ResyncAll resyncs every poll. It keeps going past per-poll failures and
// reports how many polls failed.
func (s *Resyncer) ResyncAll(ctx context.Context) (int, error) {
	pollIDs, err := s.counter.ListPollIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list polls: %w", err)
	}

	failed := 0
	for _, pollID := range pollIDs {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if err := s.ResyncPoll(ctx, pollID); err != nil {
			slog.Error("tally resync failed", "poll_id", pollID, "error", err)
			failed++
		}
	}

	slog.Info("tally resync finished", "polls", len(pollIDs), "failed", failed)
	return failed, nil
}

// Run resyncs on every tick until ctx is cancelled
func (s *Resyncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ResyncAll(ctx); err != nil && ctx.Err() == nil {
				slog.Error("tally resync aborted", "error", err)
			}
		}
	}
}
