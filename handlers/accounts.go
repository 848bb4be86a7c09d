// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/taskflow/auth"
	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/forms"
	"github.com/danielhkuo/taskflow/mail"
	"github.com/danielhkuo/taskflow/middleware"
	"github.com/danielhkuo/taskflow/models"
	"github.com/danielhkuo/taskflow/sessions"
	"github.com/danielhkuo/taskflow/views"
)

// AccountHandler serves signup with email activation under /accounts/.
type AccountHandler struct {
	site
	mailer mail.Mailer
	tokens *auth.ActivationTokens
}

func NewAccountHandler(database *db.DB, cfg cliparse.Config, renderer *views.Renderer, store *sessions.Store, mailer mail.Mailer) *AccountHandler {
	return &AccountHandler{
		site:   site{db: database, cfg: cfg, views: renderer, sessions: store},
		mailer: mailer,
		tokens: auth.NewActivationTokens(cfg.SecretKey, cfg.ActivationTimeout),
	}
}

// SignUp handles GET and POST /accounts/signup/
func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Sign up")

	if r.Method != http.MethodPost {
		p.Form = forms.SignUpForm{}
		h.views.Render(w, http.StatusOK, "signup", p)
		return
	}

	if !h.linkHostOK(r) {
		p.Message = msgBadHost
		h.views.Error(w, http.StatusBadRequest, p)
		return
	}

	form, err := forms.ParseSignUpForm(r)
	if err != nil {
		h.views.Error(w, http.StatusBadRequest, p)
		return
	}
	p.Form = form

	errs := forms.Validate(form)
	if _, bad := errs["email"]; !bad {
		taken, err := emailTaken(r.Context(), h.db, form.Email)
		if err != nil {
			h.serverError(w, r, "failed to check email", err)
			return
		}
		if taken {
			errs.Add("email", "A user with that email already exists.")
		}
	}

	var user *models.User
	if errs.Valid() {
		user, err = createUser(r.Context(), h.db, form.Username, form.Email, form.Password1, false)
		if errors.Is(err, errUsernameTaken) {
			errs.Add("username", "A user with that username already exists.")
		} else if err != nil {
			h.serverError(w, r, "failed to create account", err)
			return
		}
	}
	if !errs.Valid() {
		p.Errors = errs
		h.views.Render(w, http.StatusOK, "signup", p)
		return
	}

	if err := h.sendActivation(r.Context(), r, user); err != nil {
		// The account stays inactive; resend-activation recovers
		h.serverError(w, r, "failed to send activation email", err)
		return
	}

	slog.Info("account created, awaiting activation", "user_id", user.ID, "username", user.Username)
	h.views.Render(w, http.StatusOK, "activation_sent", h.page(r, "Check your email"))
}

// Activate handles GET /accounts/activate/{uidb64}/{token}/
func (h *AccountHandler) Activate(w http.ResponseWriter, r *http.Request) {
	user, err := h.activationUser(r)
	if err != nil {
		h.serverError(w, r, "failed to load user for activation", err)
		return
	}
	if user == nil || !h.tokens.CheckToken(user.ID, user.IsActive, r.PathValue("token")) {
		h.views.Render(w, http.StatusBadRequest, "activation_invalid", h.page(r, "Activation link invalid"))
		return
	}

	if _, err := h.db.ExecContext(r.Context(), "UPDATE account SET is_active = ? WHERE id = ?", true, user.ID); err != nil {
		h.serverError(w, r, "failed to activate account", err)
		return
	}
	user.IsActive = true

	if err := h.sessions.Login(r.Context(), w, r, user.ID, false); err != nil {
		h.serverError(w, r, "failed to start session", err)
		return
	}

	slog.Info("account activated", "user_id", user.ID)
	p := h.page(r.WithContext(middleware.ContextWithUser(r.Context(), user)), "Account activated")
	h.views.Render(w, http.StatusOK, "activation_complete", p)
}

// activationUser decodes the uid path segment. A malformed uid or an
// unknown account yields (nil, nil).
func (h *AccountHandler) activationUser(r *http.Request) (*models.User, error) {
	id, err := auth.DecodeUID(r.PathValue("uidb64"))
	if err != nil {
		return nil, nil
	}
	user, err := getUserByID(r.Context(), h.db, id)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	return user, err
}

// Profile handles GET /accounts/profile/
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, http.StatusOK, "profile", h.page(r, "Profile"))
}

// Login handles GET and POST /accounts/login/ with the "remember me" option
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "/accounts/login/", "/accounts/profile/")
}

// CheckUsername handles GET /accounts/api/check-username
func (h *AccountHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))

	taken := false
	if username != "" {
		var err error
		taken, err = usernameTaken(r.Context(), h.db, username)
		if err != nil {
			slog.Error("failed to check username", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.UsernameAvailability{
		Username:  username,
		Available: !taken,
	})
}

// CheckEmail handles GET /accounts/api/check-email
func (h *AccountHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))

	taken := false
	if email != "" {
		var err error
		taken, err = emailTaken(r.Context(), h.db, email)
		if err != nil {
			slog.Error("failed to check email", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.EmailAvailability{
		Email:     email,
		Available: !taken,
	})
}

// SendEmail handles POST /accounts/api/send-email
func (h *AccountHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req models.SendEmailRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	recipients, present, err := parseRecipients(req.To)
	if req.Subject == "" || req.Message == "" || !present {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Missing 'to', 'subject', or 'message'.")
		return
	}
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "'to' must be a string or list of strings.")
		return
	}

	err = h.mailer.Send(r.Context(), mail.Message{
		From:    h.cfg.DefaultFromEmail,
		To:      recipients,
		Subject: req.Subject,
		Body:    req.Message,
	})
	if err != nil {
		slog.Error("failed to send email", "error", err, "recipients", len(recipients))
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SendEmailResponse{
		Sent:       1,
		Recipients: recipients,
	})
}

var errBadRecipients = errors.New("recipients must be a string or list of strings")

// parseRecipients accepts a single address or a list. present is false for
// a missing, null, empty string or empty list value.
func parseRecipients(raw json.RawMessage) (recipients []string, present bool, err error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, false, nil
	}

	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil, false, nil
		}
		return []string{one}, true, nil
	}

	var many []json.RawMessage
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, true, errBadRecipients
	}
	if len(many) == 0 {
		return nil, false, nil
	}
	for _, item := range many {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, true, errBadRecipients
		}
		recipients = append(recipients, s)
	}
	return recipients, true, nil
}

// ResendActivation handles POST /accounts/api/resend-activation.
// The reply never reveals whether the address is registered.
func (h *AccountHandler) ResendActivation(w http.ResponseWriter, r *http.Request) {
	var req models.ResendActivationRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Missing 'email'.")
		return
	}
	if !h.linkHostOK(r) {
		middleware.ErrorResponse(w, http.StatusBadRequest, msgBadHost)
		return
	}

	user, err := getUserByEmail(r.Context(), h.db, email)
	if errors.Is(err, errNotFound) {
		middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: "ok"})
		return
	}
	if err != nil {
		slog.Error("failed to look up email", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if user.IsActive {
		middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: "ok", Detail: "already_active"})
		return
	}

	if err := h.sendActivation(r.Context(), r, user); err != nil {
		slog.Error("failed to resend activation email", "error", err, "user_id", user.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{Status: "ok"})
}

func (h *AccountHandler) sendActivation(ctx context.Context, r *http.Request, user *models.User) error {
	base, err := h.baseURL(r)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/accounts/activate/%s/%s/",
		base, auth.EncodeUID(user.ID), h.tokens.MakeToken(user.ID, user.IsActive))

	body, err := mail.ActivationBody(user.Username, link)
	if err != nil {
		return err
	}

	return h.mailer.Send(ctx, mail.Message{
		From:    h.cfg.DefaultFromEmail,
		To:      []string{user.Email},
		Subject: mail.ActivationSubject,
		Body:    body,
	})
}

var errDisallowedHost = errors.New("host not in allowed hosts")

// msgBadHost is returned when an emailed link would point at an unlisted host.
const msgBadHost = "Invalid HTTP_HOST header."

// baseURL prefers the configured public URL. Otherwise the request's host
// is used, but only when it is in AllowedHosts.
func (h *AccountHandler) baseURL(r *http.Request) (string, error) {
	if h.cfg.BaseURL != "" {
		return strings.TrimRight(h.cfg.BaseURL, "/"), nil
	}
	if !middleware.HostAllowed(r, h.cfg.AllowedHosts) {
		return "", fmt.Errorf("%w: %q", errDisallowedHost, r.Host)
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host, nil
}

// linkHostOK rejects requests whose Host could not be used in an emailed link.
func (h *AccountHandler) linkHostOK(r *http.Request) bool {
	if _, err := h.baseURL(r); err != nil {
		slog.Warn("rejected request with disallowed host", "host", r.Host, "path", r.URL.Path)
		return false
	}
	return true
}
