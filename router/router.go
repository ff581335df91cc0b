// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/db"
	"github.com/danielhkuo/quickly-vote/handlers"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/tally"
	"github.com/danielhkuo/quickly-vote/votes"
)

func NewRouter(conn *sql.DB, rdb *redis.Client, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Collaborators
	voteStore := db.NewVoteStore(conn)
	tallyStore := tally.NewRedisStore(rdb)
	broadcaster := tally.NewRedisBroadcaster(rdb)
	reconciler := votes.NewReconciler(voteStore, tallyStore, broadcaster)

	// Initialize handlers
	votingHandler := handlers.NewVotingHandler(reconciler, cfg)
	resultsHandler := handlers.NewResultsHandler(broadcaster)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Voting (public, anonymous session cookie)
	mux.HandleFunc("POST /polls/{pollId}/votes", middleware.WithLogging(votingHandler.VoteOnPoll))

	// Live tally stream (WebSocket)
	mux.HandleFunc("GET /polls/{pollId}/results", middleware.WithLogging(resultsHandler.PollResults))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-vote API v1"))
	})

	return mux
}
