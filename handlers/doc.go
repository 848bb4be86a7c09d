// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP request handlers for Taskflow.

# Handler Types

Each handler is a struct with its dependencies injected by a constructor:

  - TodoAPIHandler: JSON CRUD for /api/todos/ plus toggle
  - AuthAPIHandler: token registration and login
  - TodoWebHandler: HTML to-do pages, register, login, logout
  - AccountHandler: email signup, activation, profile, account JSON helpers
  - Authenticator: resolves the account behind a request

	apiHandler := handlers.NewTodoAPIHandler(db, cfg)

Handlers read the account from middleware.CurrentUser; the router decides
which of Authenticate, LoginRequired or OptionalUser runs in front.

# Ownership

Every query that reads or writes a single todo carries owner_id in its
WHERE clause, so another user's id behaves exactly like a missing one:

	GET    /api/todos/{id}/        → 404 unless owned
	PATCH  /api/todos/{id}/        → 404 unless owned
	POST   /todo/{id}/toggle/      → 404 page unless owned

Anonymous API callers list an empty collection and get 401 on writes.

# Activation

Signup stores the account inactive and mails a link of the form

	{base}/accounts/activate/{uidb64}/{token}/

The token hashes the account's active flag, so it stops validating once
used. POST /accounts/api/resend-activation issues a fresh one.
*/
package handlers
