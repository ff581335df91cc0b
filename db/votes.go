// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/votes"
)

// VoteStore is the durable vote record backed by database/sql
type VoteStore struct {
	db *sql.DB
}

func NewVoteStore(db *sql.DB) *VoteStore {
	return &VoteStore{db: db}
}

// FindVoteBySessionAndPoll returns nil when the session has not voted on the poll
func (s *VoteStore) FindVoteBySessionAndPoll(ctx context.Context, sessionID, pollID string) (*models.Vote, error) {
	var v models.Vote
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, poll_id, poll_option_id
		FROM vote
		WHERE session_id = $1 AND poll_id = $2
	`, sessionID, pollID).Scan(&v.ID, &v.SessionID, &v.PollID, &v.PollOptionID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vote: %w", err)
	}
	return &v, nil
}

// DeleteVote returns votes.ErrVoteNotFound when no row matched
func (s *VoteStore) DeleteVote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM vote WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return votes.ErrVoteNotFound
	}
	return nil
}

func (s *VoteStore) CreateVote(ctx context.Context, sessionID, pollID, pollOptionID string) (models.Vote, error) {
	v := models.Vote{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		PollID:       pollID,
		PollOptionID: pollOptionID,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote (id, session_id, poll_id, poll_option_id)
		VALUES ($1, $2, $3, $4)
	`, v.ID, v.SessionID, v.PollID, v.PollOptionID)

	if err != nil {
		switch {
		case isUniqueViolation(err):
			return models.Vote{}, fmt.Errorf("%w: %v", votes.ErrDuplicateVote, err)
		case isForeignKeyViolation(err):
			return models.Vote{}, fmt.Errorf("%w: %v", votes.ErrUnknownOption, err)
		}
		return models.Vote{}, fmt.Errorf("failed to insert vote: %w", err)
	}

	return v, nil
}

// ListPollIDs returns every known poll, including polls without votes
func (s *VoteStore) ListPollIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM poll ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountVotesByOption returns option id -> number of votes. Options without
// votes are absent.
func (s *VoteStore) CountVotesByOption(ctx context.Context, pollID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT poll_option_id, COUNT(*)
		FROM vote
		WHERE poll_id = $1
		GROUP BY poll_option_id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var optionID string
		var n int64
		if err := rows.Scan(&optionID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts[optionID] = n
	}
	return counts, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "foreign_key_violation"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "FOREIGN KEY constraint failed")
	}
	return false
}
