// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/tally"
)

const writeTimeout = 10 * time.Second

// TallySubscriber is satisfied by *tally.RedisBroadcaster
type TallySubscriber interface {
	Subscribe(ctx context.Context, pollID string) (*tally.Subscription, error)
}

type ResultsHandler struct {
	subscriber TallySubscriber
	upgrader   websocket.Upgrader
}

func NewResultsHandler(subscriber TallySubscriber) *ResultsHandler {
	return &ResultsHandler{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			// Same policy as middleware.CORS: any origin may listen
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// PollResults handles GET /polls/{pollId}/results
// Upgrades to a WebSocket and streams {optionId, newCount} for every tally change
func (h *ResultsHandler) PollResults(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("pollId")
	if _, err := uuid.Parse(pollID); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "pollId must be a UUID")
		return
	}

	// Subscribe before the handshake completes so the client can't miss
	// messages published right after it connects
	sub, err := h.subscriber.Subscribe(r.Context(), pollID)
	if err != nil {
		slog.Error("failed to subscribe to poll", "poll_id", pollID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to subscribe")
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		slog.Warn("websocket upgrade failed", "poll_id", pollID, "error", err)
		return
	}
	defer conn.Close()

	slog.Info("results subscriber connected", "poll_id", pollID, "remote", middleware.GetClientIP(r))

	// Reads only detect the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			slog.Info("results subscriber disconnected", "poll_id", pollID)
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Warn("failed to write vote message", "poll_id", pollID, "error", err)
				return
			}
		}
	}
}
