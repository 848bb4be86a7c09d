// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/forms"
	"github.com/danielhkuo/taskflow/middleware"
	"github.com/danielhkuo/taskflow/models"
)

// AuthAPIHandler issues API tokens.
type AuthAPIHandler struct {
	db  *db.DB
	cfg cliparse.Config
}

func NewAuthAPIHandler(database *db.DB, cfg cliparse.Config) *AuthAPIHandler {
	return &AuthAPIHandler{db: database, cfg: cfg}
}

// Register handles POST /api/auth/register/
func (h *AuthAPIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Username == "" || req.Password == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username and password required")
		return
	}
	if errs := forms.Validate(req); !errs.Valid() {
		middleware.ErrorResponse(w, http.StatusBadRequest, errorSummary(errs))
		return
	}

	user, err := createUser(r.Context(), h.db, req.Username, req.Email, req.Password, true)
	if errors.Is(err, errUsernameTaken) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username already taken")
		return
	}
	if err != nil {
		slog.Error("failed to register user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := getOrCreateToken(r.Context(), h.db, user.ID)
	if err != nil {
		slog.Error("failed to issue token", "error", err, "user_id", user.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	slog.Info("user registered via API", "user_id", user.ID, "username", user.Username)

	middleware.JSONResponse(w, http.StatusCreated, models.TokenResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

// Login handles POST /api/auth/login/ and the legacy POST /api-token-auth/.
// JSON and form-encoded bodies are both accepted.
func (h *AuthAPIHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Username == "" || req.Password == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, `Must include "username" and "password".`)
		return
	}

	user, err := checkCredentials(r.Context(), h.db, req.Username, req.Password)
	if err != nil {
		slog.Error("failed to check credentials", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user == nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Unable to log in with provided credentials.")
		return
	}

	token, err := getOrCreateToken(r.Context(), h.db, user.ID)
	if err != nil {
		slog.Error("failed to issue token", "error", err, "user_id", user.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.TokenResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

func decodeCredentials(r *http.Request) (models.LoginRequest, error) {
	var req models.LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, err
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	default:
		if err := middleware.ParseJSONBody(r, &req); err != nil {
			return req, err
		}
	}
	req.Username = strings.TrimSpace(req.Username)
	return req, nil
}
