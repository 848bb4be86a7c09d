// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/forms"
	"github.com/danielhkuo/taskflow/middleware"
	"github.com/danielhkuo/taskflow/sessions"
	"github.com/danielhkuo/taskflow/views"
)

// site holds what every HTML handler needs.
type site struct {
	db       *db.DB
	cfg      cliparse.Config
	views    *views.Renderer
	sessions *sessions.Store
}

// page starts the template data with the current user and navbar count.
func (s *site) page(r *http.Request, title string) views.Page {
	p := views.Page{Title: title, User: middleware.CurrentUser(r.Context())}
	if p.User != nil {
		total, _, err := countTodos(r.Context(), s.db, p.User.ID)
		if err != nil {
			slog.Error("failed to count todos for nav", "error", err, "user_id", p.User.ID)
		}
		p.NavTaskCount = total
	}
	return p
}

func (s *site) notFound(w http.ResponseWriter, r *http.Request, message string) {
	p := s.page(r, "")
	p.Message = message
	s.views.Error(w, http.StatusNotFound, p)
}

func (s *site) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "error", err, "path", r.URL.Path)
	p := s.page(r, "")
	p.Message = "Something went wrong on our side. Please try again."
	s.views.Error(w, http.StatusInternalServerError, p)
}

// login serves a username/password form at action. On success the user is
// redirected to the form's next value, or defaultNext.
func (s *site) login(w http.ResponseWriter, r *http.Request, action, defaultNext string) {
	p := s.page(r, "Log in")
	p.Action = action

	if r.Method != http.MethodPost {
		p.Form = forms.LoginForm{}
		p.Next = r.URL.Query().Get("next")
		s.views.Render(w, http.StatusOK, "login", p)
		return
	}

	form, err := forms.ParseLoginForm(r)
	if err != nil {
		s.views.Error(w, http.StatusBadRequest, p)
		return
	}
	p.Form = form
	p.Next = form.Next

	errs := forms.Validate(form)
	if errs.Valid() {
		user, err := checkCredentials(r.Context(), s.db, form.Username, form.Password)
		if err != nil {
			s.serverError(w, r, "failed to check credentials", err)
			return
		}
		if user == nil {
			errs.Add("", "Please enter a correct username and password. Note that both fields may be case-sensitive.")
		} else {
			if err := s.sessions.Login(r.Context(), w, r, user.ID, form.Remember); err != nil {
				s.serverError(w, r, "failed to start session", err)
				return
			}
			slog.Info("user logged in", "user_id", user.ID, "remember", form.Remember)
			http.Redirect(w, r, safeNext(form.Next, defaultNext), http.StatusFound)
			return
		}
	}

	p.Errors = errs
	s.views.Render(w, http.StatusOK, "login", p)
}

// safeNext only follows local absolute paths. Browsers drop control
// characters from a Location value, so any of them rejects the path.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return fallback
	}
	if strings.ContainsFunc(next, func(c rune) bool { return c < 0x20 || c == 0x7f }) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
