// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/taskflow/auth"
	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/handlers"
	"github.com/danielhkuo/taskflow/mail"
	"github.com/danielhkuo/taskflow/middleware"
	"github.com/danielhkuo/taskflow/sessions"
	"github.com/danielhkuo/taskflow/views"
)

// Per-client limits for credential and email endpoints, in requests per minute
const (
	authRatePerMinute  = 20
	authBurst          = 10
	emailRatePerMinute = 5
	emailBurst         = 3
)

// NewRouter wires every route, wrapped in CORS and cross-origin request protection
func NewRouter(database *db.DB, cfg cliparse.Config, mailer mail.Mailer) http.Handler {
	mux := http.NewServeMux()

	renderer := views.MustNew()
	store := sessions.NewStore(database, cfg.SessionAge)
	authn := handlers.NewAuthenticator(database, store)

	// Initialize handlers
	apiHandler := handlers.NewTodoAPIHandler(database, cfg)
	authAPIHandler := handlers.NewAuthAPIHandler(database, cfg)
	webHandler := handlers.NewTodoWebHandler(database, cfg, renderer, store)
	accountHandler := handlers.NewAccountHandler(database, cfg, renderer, store, mailer)

	authLimiter := middleware.NewRateLimiter(authRatePerMinute, authBurst, cfg.TrustedProxies...)
	emailLimiter := middleware.NewRateLimiter(emailRatePerMinute, emailBurst, cfg.TrustedProxies...)

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.Authenticate(authn.Resolve)(h))
	}
	page := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.LoginRequired(authn.ResolveSession, "/login/")(h))
	}
	accountPage := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.LoginRequired(authn.ResolveSession, "/accounts/login/")(h))
	}
	optional := middleware.OptionalUser(authn.ResolveSession)
	public := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(optional(h))
	}
	limited := func(l *middleware.RateLimiter, h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(l.Wrap(h))
	}

	// Health check and metrics
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", middleware.MetricsHandler())

	// To-do pages (session login required)
	mux.HandleFunc("GET /{$}", page(webHandler.List))
	mux.HandleFunc("GET /all/{$}", page(webHandler.All))
	mux.HandleFunc("GET /todo/{id}/{$}", page(webHandler.Detail))
	mux.HandleFunc("GET /todo/create/{$}", page(webHandler.Create))
	mux.HandleFunc("POST /todo/create/{$}", page(webHandler.Create))
	mux.HandleFunc("GET /todo/{id}/edit/{$}", page(webHandler.Edit))
	mux.HandleFunc("POST /todo/{id}/edit/{$}", page(webHandler.Edit))
	mux.HandleFunc("GET /todo/{id}/delete/{$}", page(webHandler.Delete))
	mux.HandleFunc("POST /todo/{id}/delete/{$}", page(webHandler.Delete))
	mux.HandleFunc("POST /todo/{id}/toggle/{$}", page(webHandler.Toggle))

	// Session auth pages
	mux.HandleFunc("GET /register/{$}", public(webHandler.Register))
	mux.HandleFunc("POST /register/{$}", limited(authLimiter, optional(webHandler.Register)))
	mux.HandleFunc("GET /login/{$}", public(webHandler.Login))
	mux.HandleFunc("POST /login/{$}", limited(authLimiter, optional(webHandler.Login)))
	mux.HandleFunc("GET /logout/{$}", middleware.WithLogging(webHandler.Logout))
	mux.HandleFunc("POST /logout/{$}", middleware.WithLogging(webHandler.Logout))

	// JSON API (token or session)
	mux.HandleFunc("GET /api/todos/{$}", api(apiHandler.List))
	mux.HandleFunc("POST /api/todos/{$}", api(apiHandler.Create))
	mux.HandleFunc("GET /api/todos/{id}/{$}", api(apiHandler.Retrieve))
	mux.HandleFunc("PUT /api/todos/{id}/{$}", api(apiHandler.Update))
	mux.HandleFunc("PATCH /api/todos/{id}/{$}", api(apiHandler.PartialUpdate))
	mux.HandleFunc("DELETE /api/todos/{id}/{$}", api(apiHandler.Destroy))
	mux.HandleFunc("POST /api/todos/{id}/toggle/{$}", api(apiHandler.Toggle))

	// Token issuance
	mux.HandleFunc("POST /api/auth/register/{$}", limited(authLimiter, authAPIHandler.Register))
	mux.HandleFunc("POST /api/auth/login/{$}", limited(authLimiter, authAPIHandler.Login))
	mux.HandleFunc("POST /api-token-auth/{$}", limited(authLimiter, authAPIHandler.Login))

	// Accounts with email activation
	mux.HandleFunc("GET /accounts/signup/{$}", public(accountHandler.SignUp))
	mux.HandleFunc("POST /accounts/signup/{$}", limited(emailLimiter, optional(accountHandler.SignUp)))
	mux.HandleFunc("GET /accounts/activate/{uidb64}/{token}/{$}", public(accountHandler.Activate))
	mux.HandleFunc("GET /accounts/profile/{$}", accountPage(accountHandler.Profile))
	mux.HandleFunc("GET /accounts/login/{$}", public(accountHandler.Login))
	mux.HandleFunc("POST /accounts/login/{$}", limited(authLimiter, optional(accountHandler.Login)))

	// Account JSON helpers
	mux.HandleFunc("GET /accounts/api/check-username", middleware.WithLogging(accountHandler.CheckUsername))
	mux.HandleFunc("GET /accounts/api/check-email", middleware.WithLogging(accountHandler.CheckEmail))
	mux.HandleFunc("POST /accounts/api/send-email", limited(emailLimiter, accountHandler.SendEmail))
	mux.HandleFunc("POST /accounts/api/resend-activation", limited(emailLimiter, accountHandler.ResendActivation))

	return middleware.CORS(crossOriginProtection(cfg, mux))
}

// crossOriginProtection rejects cross-site browser writes that ride on the
// session cookie. Requests carrying a Token credential and the two JSON
// email endpoints are exempt; any other Authorization scheme still falls
// back to the session and is checked.
func crossOriginProtection(cfg cliparse.Config, next http.Handler) http.Handler {
	cop := http.NewCrossOriginProtection()
	cop.AddInsecureBypassPattern("POST /accounts/api/send-email")
	cop.AddInsecureBypassPattern("POST /accounts/api/resend-activation")
	if cfg.BaseURL != "" {
		if err := cop.AddTrustedOrigin(cfg.BaseURL); err != nil {
			slog.Warn("base URL is not a valid trusted origin", "base_url", cfg.BaseURL, "error", err)
		}
	}
	cop.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Warn("cross-origin request rejected", "path", r.URL.Path, "origin", r.Header.Get("Origin"))
		middleware.ErrorResponse(w, http.StatusForbidden, "CSRF Failed: Origin checking failed.")
	}))

	protected := cop.Handler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key, err := auth.ParseAuthorization(r.Header.Get("Authorization")); err == nil && key != "" {
			next.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}
