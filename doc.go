// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Vote API server.

Quickly Vote is an anonymous single-choice polling service. Each browser gets
one vote per poll, may switch it at any time, and every change is pushed live
to the poll's listeners.

# Starting the Server

The server reads a .env file if present, then environment variables or CLI
flags:

	DATABASE_URL=votes.db COOKIE_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -r redis://localhost:6379/0

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file path or PostgreSQL connection string
  - COOKIE_SECRET (--cookie-secret): Secret for the sessionId cookie HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - REDIS_URL (-r): Tally store and pub/sub (default: redis://localhost:6379/0)
  - TALLY_RESYNC_INTERVAL (--resync): Rebuild tallies from votes, e.g. 5m (default: off)

# Architecture

  - votes: Vote reconciliation and tally resync (storage-agnostic)
  - db: SQL schema and the vote store (lib/pq, modernc.org/sqlite)
  - tally: Redis sorted-set tallies and pub/sub broadcasting
  - handlers: HTTP handlers for voting and the live results WebSocket
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response and storage types
  - auth: Session ids and cookie signing
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
