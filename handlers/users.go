// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/taskflow/auth"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/middleware"
	"github.com/danielhkuo/taskflow/models"
	"github.com/danielhkuo/taskflow/sessions"
)

var (
	errNotFound      = errors.New("not found")
	errUsernameTaken = errors.New("username taken")
)

const userColumns = "id, username, email, password_hash, is_active, date_joined, last_login"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.DateJoined, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

func getUserByID(ctx context.Context, d *db.DB, id int64) (*models.User, error) {
	return scanUser(d.QueryRowContext(ctx, "SELECT "+userColumns+" FROM account WHERE id = ?", id))
}

func getUserByUsername(ctx context.Context, d *db.DB, username string) (*models.User, error) {
	return scanUser(d.QueryRowContext(ctx, "SELECT "+userColumns+" FROM account WHERE username = ?", username))
}

// getUserByEmail matches case-insensitively; the oldest account wins.
func getUserByEmail(ctx context.Context, d *db.DB, email string) (*models.User, error) {
	return scanUser(d.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM account WHERE LOWER(email) = LOWER(?) ORDER BY id LIMIT 1", email))
}

func usernameTaken(ctx context.Context, d *db.DB, username string) (bool, error) {
	var exists bool
	err := d.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM account WHERE LOWER(username) = LOWER(?))", username).Scan(&exists)
	return exists, err
}

func emailTaken(ctx context.Context, d *db.DB, email string) (bool, error) {
	var exists bool
	err := d.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM account WHERE LOWER(email) = LOWER(?))", email).Scan(&exists)
	return exists, err
}

// createUser hashes the password and inserts the account.
// errUsernameTaken is returned when the username exists, ignoring case.
func createUser(ctx context.Context, d *db.DB, username, email, password string, active bool) (*models.User, error) {
	taken, err := usernameTaken(ctx, d, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, errUsernameTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
		DateJoined:   time.Now().UTC(),
	}
	err = d.QueryRowContext(ctx, `
		INSERT INTO account (username, email, password_hash, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, u.Username, u.Email, u.PasswordHash, u.IsActive, u.DateJoined).Scan(&u.ID)
	if db.IsUniqueViolation(err) {
		return nil, errUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	return u, nil
}

// checkCredentials returns the active account matching username and password,
// or nil when they do not match.
func checkCredentials(ctx context.Context, d *db.DB, username, password string) (*models.User, error) {
	u, err := getUserByUsername(ctx, d, username)
	if errors.Is(err, errNotFound) {
		// Spend the same time as a real comparison
		_ = auth.CheckPassword(dummyHash(), password)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if auth.CheckPassword(u.PasswordHash, password) != nil || !u.IsActive {
		return nil, nil
	}
	return u, nil
}

// dummyHash is compared against when the username does not exist.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("taskflow-unknown-user")
	return h
})

// getOrCreateToken returns the user's API key, issuing one on first use.
func getOrCreateToken(ctx context.Context, d *db.DB, userID int64) (string, error) {
	var key string
	err := d.QueryRowContext(ctx, "SELECT key FROM api_token WHERE user_id = ?", userID).Scan(&key)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to query token: %w", err)
	}

	key, err = auth.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	_, err = d.ExecContext(ctx, `
		INSERT INTO api_token (key, user_id, created_at)
		VALUES (?, ?, ?)
	`, key, userID, time.Now().UTC())
	if db.IsUniqueViolation(err) {
		// Lost a race with a concurrent login; use the winner's key
		err = d.QueryRowContext(ctx, "SELECT key FROM api_token WHERE user_id = ?", userID).Scan(&key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return key, nil
}

// Authenticator identifies the account behind a request, by API token first
// and then by session cookie.
type Authenticator struct {
	db       *db.DB
	sessions *sessions.Store
}

func NewAuthenticator(database *db.DB, store *sessions.Store) *Authenticator {
	return &Authenticator{db: database, sessions: store}
}

// Resolve implements middleware.UserResolver for the JSON API.
func (a *Authenticator) Resolve(r *http.Request) (*models.User, error) {
	key, err := auth.ParseAuthorization(r.Header.Get("Authorization"))
	if err != nil {
		return nil, &middleware.AuthError{Message: "Invalid token header. No credentials provided."}
	}
	if key != "" {
		return a.byToken(r.Context(), key)
	}
	return a.ResolveSession(r)
}

func (a *Authenticator) byToken(ctx context.Context, key string) (*models.User, error) {
	cols := "a." + strings.ReplaceAll(userColumns, ", ", ", a.")
	u, err := scanUser(a.db.QueryRowContext(ctx, `
		SELECT `+cols+`
		FROM api_token t
		JOIN account a ON a.id = t.user_id
		WHERE t.key = ?
	`, key))
	if errors.Is(err, errNotFound) {
		return nil, &middleware.AuthError{Message: "Invalid token."}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if !u.IsActive {
		return nil, &middleware.AuthError{Message: "User inactive or deleted."}
	}
	return u, nil
}

// ResolveSession implements middleware.UserResolver for HTML pages.
// A stale session or a deactivated account is treated as anonymous.
func (a *Authenticator) ResolveSession(r *http.Request) (*models.User, error) {
	userID, err := a.sessions.UserID(r.Context(), r)
	if errors.Is(err, sessions.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u, err := getUserByID(r.Context(), a.db, userID)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if !u.IsActive {
		return nil, nil
	}
	return u, nil
}
