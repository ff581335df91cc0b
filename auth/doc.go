// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides anonymous session identity and cookie signing.

# Session IDs

Voters never log in. The first vote from a browser mints a random UUID:

	sessionID := auth.NewSessionID()

Possession of the id is what allows a browser to change its own vote, so
the id is only ever handed out inside a signed, HttpOnly cookie.

# Cookie Signing

Cookie values use HMAC-SHA256 with the server's COOKIE_SECRET:

	signed := auth.SignCookieValue(sessionID, secret)
	sessionID, err := auth.UnsignCookieValue(signed, secret)

The signed form is "<value>.<signature>" with the signature URL-safe base64
encoded without padding. UnsignCookieValue returns ErrInvalidToken for
malformed input and ErrInvalidSignature when the HMAC does not match.
Comparison is constant-time.
*/
package auth
