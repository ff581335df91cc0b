package models

// Cookie carrying the anonymous per-browser session id
const SessionCookieName = "sessionId"

// Request types

type VoteOnPollRequest struct {
	PollOptionID string `json:"pollOptionId"`
}

// Domain types

// One row per (session, poll). A switch deletes the row and inserts a new one.
type Vote struct {
	ID           string `json:"id"`
	SessionID    string `json:"-"` // Never expose in JSON
	PollID       string `json:"pollId"`
	PollOptionID string `json:"pollOptionId"`
}

// Live tally events

// VoteMessage is published on a poll's channel after every tally change
type VoteMessage struct {
	OptionID string `json:"optionId"`
	NewCount int64  `json:"newCount"`
}

// Error response

type ErrorResponse struct {
	Message string `json:"message"`
}
