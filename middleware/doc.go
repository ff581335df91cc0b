// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("POST /polls/{pollId}/votes", middleware.WithLogging(handler))

Logs request start (method, path, client IP) and completion (duration_ms).
The ResponseWriter is passed through untouched, so WebSocket upgrades still
work behind it.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

The request origin is echoed back together with
Access-Control-Allow-Credentials so browsers send the sessionId cookie.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Error bodies have the shape {"message": "..."}.

Parse JSON request bodies:

	var req models.VoteOnPollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

Used in request and session-cookie logs.
*/
package middleware
