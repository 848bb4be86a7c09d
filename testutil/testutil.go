// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/taskflow/auth"
	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/models"
	"github.com/danielhkuo/taskflow/sessions"
)

// TestPassword is the password given to every fixture user
const TestPassword = "correct-horse-battery"

// passwordHash is computed once; bcrypt is deliberately slow.
var passwordHash = func() string {
	h, err := auth.HashPassword(TestPassword)
	if err != nil {
		panic(err)
	}
	return h
}()

// SetupTestDB creates a fresh in-memory SQLite database with the full schema
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Open(ctx, models.DialectSQLite, ":memory:")
	require.NoError(t, err, "failed to open test database")

	require.NoError(t, db.CreateSchema(ctx, conn), "failed to create schema")

	t.Cleanup(func() { conn.Close() })
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              3318,
		DatabaseURL:       ":memory:",
		DatabaseType:      models.DialectSQLite,
		SecretKey:         "test-secret-key",
		BaseURL:           "http://testserver",
		EmailBackend:      models.EmailBackendMemory,
		DefaultFromEmail:  "noreply@testserver",
		ActivationTimeout: 72 * time.Hour,
		SessionAge:        14 * 24 * time.Hour,
	}
}

// CreateTestUser inserts an account with TestPassword and returns it
func CreateTestUser(t *testing.T, d *db.DB, username, email string, active bool) models.User {
	t.Helper()

	u := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     active,
		DateJoined:   time.Now().UTC(),
	}
	err := d.QueryRow(`
		INSERT INTO account (username, email, password_hash, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, u.Username, u.Email, u.PasswordHash, u.IsActive, u.DateJoined).Scan(&u.ID)
	require.NoError(t, err, "failed to create test user")

	return u
}

// CreateTestToken issues an API token for the user and returns its key
func CreateTestToken(t *testing.T, d *db.DB, userID int64) string {
	t.Helper()

	key, err := auth.GenerateAPIKey()
	require.NoError(t, err)

	_, err = d.Exec(`
		INSERT INTO api_token (key, user_id, created_at)
		VALUES (?, ?, ?)
	`, key, userID, time.Now().UTC())
	require.NoError(t, err, "failed to create test token")

	return key
}

// CreateTestTodo inserts a todo owned by ownerID and returns its ID
func CreateTestTodo(t *testing.T, d *db.DB, ownerID int64, title string, completed bool) int64 {
	t.Helper()

	// Nudge timestamps apart so newest-first ordering is deterministic
	now := time.Now().UTC().Add(time.Duration(todoSeq()) * time.Millisecond)

	var id int64
	err := d.QueryRow(`
		INSERT INTO todo (owner_id, title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, ownerID, title, "desc", completed, now, now).Scan(&id)
	require.NoError(t, err, "failed to create test todo")

	return id
}

var seq atomic.Int64

func todoSeq() int64 {
	return seq.Add(1)
}

// CreateTestSession logs the user in and returns the session cookie
func CreateTestSession(t *testing.T, d *db.DB, userID int64) *http.Cookie {
	t.Helper()

	store := sessions.NewStore(d, 14*24*time.Hour)
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/login/", nil)
	require.NoError(t, store.Login(context.Background(), w, r, userID, false))

	for _, c := range w.Result().Cookies() {
		if c.Name == sessions.CookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

// MakeRequest creates an HTTP test request with a JSON body
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

// MakeFormRequest creates a URL-encoded form POST
func MakeFormRequest(path string, values url.Values, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

// TokenHeader returns the Authorization header for an API key
func TokenHeader(key string) map[string]string {
	return map[string]string{"Authorization": "Token " + key}
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
