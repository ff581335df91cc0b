// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/db"
)

// TestCookieSecret signs session cookies in tests
const TestCookieSecret = "test-cookie-secret"

// SetupTestDB creates a fresh SQLite database with the full schema.
// The file lives in t.TempDir and is removed after the test.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := "file:" + filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open(db.TypeSQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// SetupTestRedis starts an in-process Redis and returns a client for it.
// Both are shut down when the test ends.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return mr, rdb
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "file::memory:",
		DatabaseType: db.TypeSQLite,
		RedisURL:     "redis://localhost:6379/0",
		CookieSecret: TestCookieSecret,
	}
}

// CreateTestPoll creates a poll in the database and returns its ID
func CreateTestPoll(t *testing.T, conn *sql.DB, title string) string {
	t.Helper()

	pollID := uuid.NewString()
	_, err := conn.Exec(`INSERT INTO poll (id, title) VALUES ($1, $2)`, pollID, title)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return pollID
}

// AddTestOption adds an option to a poll and returns the option ID
func AddTestOption(t *testing.T, conn *sql.DB, pollID, title string) string {
	t.Helper()

	optionID := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO poll_option (id, title, poll_id)
		VALUES ($1, $2, $3)
	`, optionID, title, pollID)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return optionID
}

// CountVotes returns the number of vote rows for a poll option
func CountVotes(t *testing.T, conn *sql.DB, pollID, optionID string) int64 {
	t.Helper()

	var n int64
	err := conn.QueryRow(`
		SELECT COUNT(*) FROM vote WHERE poll_id = $1 AND poll_option_id = $2
	`, pollID, optionID).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	return n
}

// CountSessionVotes returns the number of vote rows a session holds on a poll
func CountSessionVotes(t *testing.T, conn *sql.DB, sessionID, pollID string) int64 {
	t.Helper()

	var n int64
	err := conn.QueryRow(`
		SELECT COUNT(*) FROM vote WHERE session_id = $1 AND poll_id = $2
	`, sessionID, pollID).Scan(&n)
	if err != nil {
		t.Fatalf("Failed to count session votes: %v", err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
