// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Vote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(conn, rdb, cfg)

# Endpoints

Health:

	GET /health

Voting (public, anonymous sessionId cookie):

	POST /polls/{pollId}/votes - Vote, re-vote, or switch option

Live tally (public, WebSocket):

	GET /polls/{pollId}/results - Stream {optionId, newCount} updates

# Handler Initialization

The router builds the vote reconciler from its three collaborators and
injects it into the handlers:

	voteStore := db.NewVoteStore(conn)
	tallyStore := tally.NewRedisStore(rdb)
	broadcaster := tally.NewRedisBroadcaster(rdb)
	reconciler := votes.NewReconciler(voteStore, tallyStore, broadcaster)

	votingHandler := handlers.NewVotingHandler(reconciler, cfg)
	resultsHandler := handlers.NewResultsHandler(broadcaster)
*/
package router
