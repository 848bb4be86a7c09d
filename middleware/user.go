// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/danielhkuo/taskflow/models"
)

type contextKey int

const userKey contextKey = iota

// UserResolver loads the account making the request.
// Anonymous requests resolve to (nil, nil).
type UserResolver func(r *http.Request) (*models.User, error)

// AuthError is returned by a UserResolver when credentials were presented
// but are not acceptable. It maps to 401.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// ContextWithUser stores the authenticated user in ctx
func ContextWithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser returns the authenticated user, or nil for anonymous requests
func CurrentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// Authenticate resolves the user for JSON endpoints. Anonymous requests pass
// through; bad credentials get a 401 JSON error.
func Authenticate(resolve UserResolver) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u, err := resolve(r)
			if err != nil {
				var authErr *AuthError
				if errors.As(err, &authErr) {
					ErrorResponse(w, http.StatusUnauthorized, authErr.Message)
					return
				}
				slog.Error("failed to resolve user", "error", err)
				ErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			if u != nil {
				r = r.WithContext(ContextWithUser(r.Context(), u))
			}
			next(w, r)
		}
	}
}

// LoginRequired resolves the user for HTML pages and redirects anonymous
// visitors to loginURL with a next parameter.
func LoginRequired(resolve UserResolver, loginURL string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u, err := resolve(r)
			if err != nil {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					slog.Error("failed to resolve user", "error", err)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
			}
			if u == nil {
				http.Redirect(w, r, loginURL+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
				return
			}
			next(w, r.WithContext(ContextWithUser(r.Context(), u)))
		}
	}
}

// OptionalUser resolves the user for pages that render for everyone
func OptionalUser(resolve UserResolver) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u, err := resolve(r)
			if err != nil {
				slog.Warn("ignoring unresolvable user", "error", err)
			}
			if u != nil {
				r = r.WithContext(ContextWithUser(r.Context(), u))
			}
			next(w, r)
		}
	}
}
