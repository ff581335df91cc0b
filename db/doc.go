// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections, schema creation, and the durable
vote store.

# Connecting

Both PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite) are supported:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

SQLite connections get foreign keys enabled and are limited to one open
connection.

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - poll: Polls (managed outside this service)
  - poll_option: Options per poll
  - vote: One vote per (session_id, poll_id)

# Relationships

	poll 1──* poll_option
	poll 1──* vote
	poll_option 1──* vote   (via (poll_option_id, poll_id))

The composite foreign key guarantees a vote's option belongs to the vote's
poll. All foreign keys use ON DELETE CASCADE.

# Vote Store

VoteStore implements the votes.VoteStore port:

	store := db.NewVoteStore(conn)
	vote, err := store.CreateVote(ctx, sessionID, pollID, optionID)

Driver errors are translated for both databases:

  - unique violation      → votes.ErrDuplicateVote
  - foreign key violation → votes.ErrUnknownOption
  - delete of missing row → votes.ErrVoteNotFound

ListPollIDs and CountVotesByOption feed votes.Resyncer.
*/
package db
