// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start and completion (status, duration_ms) tagged with an
X-Request-ID, and records taskflow_http_requests_total and
taskflow_http_request_duration_seconds by mux pattern.

# Authentication

Handlers never parse credentials themselves. A UserResolver is wrapped in
one of three adapters:

	middleware.Authenticate(resolve)          // JSON: 401 on bad credentials
	middleware.LoginRequired(resolve, "/login/") // HTML: redirect with ?next=
	middleware.OptionalUser(resolve)          // HTML: anonymous allowed

The handler reads the account with middleware.CurrentUser(r.Context()).

# Rate Limiting

	limiter := middleware.NewRateLimiter(10, 5)
	mux.HandleFunc("POST /api/auth/login/{$}", limiter.Wrap(h.Login))

One token bucket per client IP; rejected requests get 429 and Retry-After.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.TodoRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

	ip := middleware.ClientIP(r, cfg.TrustedProxies)

Returns the peer address. X-Forwarded-For is consulted only when the peer
is a trusted proxy, so clients cannot pick their own rate-limit bucket.

	ok := middleware.HostAllowed(r, cfg.AllowedHosts)

Matches the Host header against exact names, ".domain" suffixes or "*".
*/
package middleware
