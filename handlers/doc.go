// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Vote API.

# Handler Types

  - VotingHandler: POST /polls/{pollId}/votes, backed by a VoteReconciler
  - ResultsHandler: GET /polls/{pollId}/results, a WebSocket tally stream

Handlers are created via constructor functions:

	votingHandler := handlers.NewVotingHandler(reconciler, cfg)
	resultsHandler := handlers.NewResultsHandler(broadcaster)

# Voting Flow

Browsers are identified by a signed sessionId cookie. The first vote mints a
session and sets the cookie (Path=/, HttpOnly, 30 days).

	201 Created       vote recorded (first vote or switched option)
	400 Bad Request   same option again, or malformed pollId/pollOptionId
	404 Not Found     option does not exist or belongs to another poll
	409 Conflict      a concurrent request from the same session won
	500               database, tally, or broadcast failure

A tampered or unknown cookie is ignored and a new session is issued.

# Live Results

Each successful tally change is pushed to every connected client of the poll
as {"optionId": "...", "newCount": N}. Clients only receive changes made after
they connect.
*/
package handlers
