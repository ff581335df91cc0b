// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

  - VoteOnPollRequest: pollOptionId

# Domain Types

  - Vote: one session's choice on one poll

Polls and their options are created outside this service; they exist only
as rows in the poll and poll_option tables.

# Live Tally

VoteMessage is the payload published on a poll's channel whenever an
option count changes:

	{"optionId": "...", "newCount": 3}

# Error Response

	{"message": "You already voted on this poll."}

# Cookies

SessionCookieName ("sessionId") carries the signed anonymous session id.
*/
package models
