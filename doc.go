// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Taskflow server.

Taskflow is a multi-user to-do manager. Each todo belongs to one account;
accounts manage their todos through server-rendered pages (session cookie)
or a JSON API (token or session). A separate accounts flow signs users up
inactive and activates them from an emailed link.

# Starting the Server

The server reads flags, the environment, a .env file and an optional YAML
file:

	SECRET_KEY=... DATABASE_URL=taskflow.db go run .

Or with flags against PostgreSQL:

	go run . -t postgres -d "postgres://..." -secret ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - SECRET_KEY (-secret): Key for activation tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - BASE_URL (-base-url): Public origin used in activation links
  - ALLOWED_HOSTS (-allowed-hosts): Hosts accepted for links when BASE_URL is unset
  - TRUSTED_PROXIES (-trusted-proxies): Proxies whose X-Forwarded-For is honoured
  - EMAIL_BACKEND (-email-backend): console, smtp or memory
  - SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD
  - DEFAULT_FROM_EMAIL (-from)
  - ACTIVATION_TIMEOUT, SESSION_AGE: Go durations
  - LOG_FORMAT (text or json), LOG_LEVEL
  - CONFIG_FILE (-c): YAML file with the same settings

# Architecture

  - handlers: HTTP request handlers (todo API, todo pages, auth, accounts)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, metrics, rate limiting, user resolution
  - views: Embedded HTML templates
  - forms: Form binding and validation
  - sessions: Database-backed login sessions
  - mail: Console, SMTP and in-memory mailers
  - models: Request/response and domain types
  - auth: Password hashing, API tokens and activation tokens
  - db: Connection and schema for SQLite or PostgreSQL
  - cliparse: Configuration parsing

Expired sessions are purged hourly. SIGINT or SIGTERM drains in-flight
requests before exit.
*/
package main
