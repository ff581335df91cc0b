// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-vote/auth"
	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/votes"
)

const (
	MsgAlreadyVoted  = "You already voted on this poll."
	MsgUnknownOption = "Poll option not found."
	MsgVoteConflict  = "Your vote changed while this request was running, please retry."
)

// VoteReconciler is satisfied by *votes.Reconciler
type VoteReconciler interface {
	Vote(ctx context.Context, req votes.Request) (votes.Result, error)
}

type VotingHandler struct {
	reconciler VoteReconciler
	cfg        cliparse.Config
}

func NewVotingHandler(reconciler VoteReconciler, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{reconciler: reconciler, cfg: cfg}
}

// VoteOnPoll handles POST /polls/{pollId}/votes
func (h *VotingHandler) VoteOnPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("pollId")
	if _, err := uuid.Parse(pollID); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "pollId must be a UUID")
		return
	}

	// Parse request
	var req models.VoteOnPollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if _, err := uuid.Parse(req.PollOptionID); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "pollOptionId must be a UUID")
		return
	}

	res, err := h.reconciler.Vote(r.Context(), votes.Request{
		PollID:       pollID,
		PollOptionID: req.PollOptionID,
		SessionID:    h.sessionFromCookie(r),
	})

	// A stored vote belongs to the minted session even if a later tally
	// step failed, so hand the session out before reporting the error.
	if res.NewSession && res.Vote.ID != "" {
		h.setSessionCookie(w, res.SessionID)
	}

	if err != nil {
		switch {
		case errors.Is(err, votes.ErrAlreadyVoted):
			middleware.ErrorResponse(w, http.StatusBadRequest, MsgAlreadyVoted)
		case errors.Is(err, votes.ErrUnknownOption):
			middleware.ErrorResponse(w, http.StatusNotFound, MsgUnknownOption)
		case errors.Is(err, votes.ErrConflict):
			slog.Warn("vote conflict", "poll_id", pollID, "error", err)
			middleware.ErrorResponse(w, http.StatusConflict, MsgVoteConflict)
		default:
			slog.Error("failed to record vote", "poll_id", pollID, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		}
		return
	}

	slog.Info("vote recorded",
		"poll_id", pollID,
		"vote_id", res.Vote.ID,
		"new_session", res.NewSession,
		"replaced_option_id", res.ReplacedOptionID,
	)

	w.WriteHeader(http.StatusCreated)
}

// sessionFromCookie returns "" when the cookie is missing or fails verification
func (h *VotingHandler) sessionFromCookie(r *http.Request) string {
	c, err := r.Cookie(models.SessionCookieName)
	if err != nil {
		return ""
	}

	sessionID, err := auth.UnsignCookieValue(c.Value, h.cfg.CookieSecret)
	if err != nil {
		slog.Warn("ignoring session cookie", "error", err, "remote", middleware.GetClientIP(r))
		return ""
	}
	if !auth.ValidSessionID(sessionID) {
		return ""
	}
	return sessionID
}

func (h *VotingHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     models.SessionCookieName,
		Value:    auth.SignCookieValue(sessionID, h.cfg.CookieSecret),
		Path:     "/",
		MaxAge:   int(votes.SessionMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
