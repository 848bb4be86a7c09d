// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/taskflow/auth"
	"github.com/danielhkuo/taskflow/db"
)

// CookieName is the browser cookie carrying the session key
const CookieName = "sessionid"

var ErrNoSession = errors.New("no session")

// Store keeps browser sessions in the session table.
type Store struct {
	db  *db.DB
	age time.Duration
}

func NewStore(database *db.DB, age time.Duration) *Store {
	return &Store{db: database, age: age}
}

// Login starts a new session for userID and sets the cookie.
// With remember unset the cookie lasts until the browser closes;
// the server-side row still expires after the configured age.
func (s *Store) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64, remember bool) error {
	// Rotate: never reuse a key that existed before authentication
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE key = ?", c.Value); err != nil {
			slog.Error("failed to delete previous session", "error", err)
		}
	}

	key, err := auth.GenerateSessionKey()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.age)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session (key, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, key, userID, expiresAt, now)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.Expires = expiresAt
		cookie.MaxAge = int(s.age / time.Second)
	}
	http.SetCookie(w, cookie)

	_, err = s.db.ExecContext(ctx, "UPDATE account SET last_login = ? WHERE id = ?", now, userID)
	if err != nil {
		slog.Error("failed to update last_login", "error", err, "user_id", userID)
	}

	return nil
}

// Logout deletes the session row and clears the cookie.
func (s *Store) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE key = ?", c.Value); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// UserID returns the user owning the request's session.
// ErrNoSession is returned when there is no cookie or the session expired.
func (s *Store) UserID(ctx context.Context, r *http.Request) (int64, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return 0, ErrNoSession
	}

	var userID int64
	err = s.db.QueryRowContext(ctx, `
		SELECT user_id FROM session
		WHERE key = ? AND expires_at > ?
	`, c.Value, time.Now().UTC()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSession
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query session: %w", err)
	}
	return userID, nil
}

// PurgeExpired deletes sessions past their expiry and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// RunPurger calls PurgeExpired every interval until ctx is done.
func (s *Store) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				slog.Error("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired sessions purged", "count", n)
			}
		}
	}
}
