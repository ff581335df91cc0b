// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidSignature = errors.New("invalid cookie signature")
	ErrInvalidToken     = errors.New("invalid token format")
)

// NewSessionID mints an anonymous per-browser session id.
// Random (v4) UUIDs carry 122 bits of entropy.
func NewSessionID() string {
	return uuid.NewString()
}

// SignCookieValue appends an HMAC of the value so tampering is detectable
// Format: <value>.<base64url(hmac-sha256)>
func SignCookieValue(value, secret string) string {
	return value + "." + signature(value, secret)
}

// UnsignCookieValue verifies a value produced by SignCookieValue and returns
// the original value
func UnsignCookieValue(signed, secret string) (string, error) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 || i == len(signed)-1 {
		return "", ErrInvalidToken
	}
	value, sig := signed[:i], signed[i+1:]

	expected := signature(value, secret)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", ErrInvalidSignature
	}
	return value, nil
}

// ValidSessionID reports whether id looks like a session id we minted
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func signature(value, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(value))
	// URL-safe base64 without padding keeps the cookie value unquoted
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
