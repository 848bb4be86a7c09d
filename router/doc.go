// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for Taskflow.

# Route Registration

NewRouter builds an http.ServeMux with every endpoint and wraps it in CORS
and cross-origin request protection:

	handler := router.NewRouter(db, cfg, mail.New(cfg))

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

To-do pages (session login, redirect to /login/):

	GET      /                   - Own todos with counts
	GET      /all/               - Every user's todos, read-only
	GET      /todo/{id}/         - Detail
	GET|POST /todo/create/       - Create form
	GET|POST /todo/{id}/edit/    - Edit form
	GET|POST /todo/{id}/delete/  - Confirm and delete
	POST     /todo/{id}/toggle/  - Flip completed

Session auth:

	GET|POST /register/
	GET|POST /login/
	GET|POST /logout/

JSON API (Authorization: Token <key>, or the session cookie):

	GET|POST              /api/todos/
	GET|PUT|PATCH|DELETE  /api/todos/{id}/
	POST                  /api/todos/{id}/toggle/
	POST                  /api/auth/register/
	POST                  /api/auth/login/
	POST                  /api-token-auth/

Accounts:

	GET|POST /accounts/signup/
	GET      /accounts/activate/{uidb64}/{token}/
	GET|POST /accounts/login/
	GET      /accounts/profile/
	GET      /accounts/api/check-username?username=
	GET      /accounts/api/check-email?email=
	POST     /accounts/api/send-email
	POST     /accounts/api/resend-activation

Credential and email endpoints are rate limited per client IP. The peer
address is used unless it is listed in TRUSTED_PROXIES, in which case the
nearest untrusted X-Forwarded-For hop is.

# Cross-origin protection

Unsafe requests from a browser on another origin are rejected with 403
unless they carry a Token credential or target one of the JSON email
endpoints. Non-browser clients send neither Origin nor Sec-Fetch-Site and
pass through.
*/
package router
