// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Connecting

Open selects the driver from the dialect and pings the server:

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)

Supported dialects are "postgres" (github.com/lib/pq) and "sqlite"
(modernc.org/sqlite). SQLite connections get foreign keys enabled and are
limited to a single open connection.

# Placeholders

Queries are written with ? placeholders. DB shadows Exec, Query and QueryRow
(and their Context variants) and rewrites them to $1, $2, ... for PostgreSQL:

	row := conn.QueryRowContext(ctx, "SELECT title FROM todo WHERE id = ?", id)

Transactions obtained from BeginTx are not rewritten; call Rebind yourself.

# Schema Creation

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - account: users, bcrypt password hashes, is_active flag
  - todo: to-do items, optionally owned by an account
  - api_token: one API token per account
  - session: browser sessions

# Relationships

	account 1──* todo
	account 1──1 api_token
	account 1──* session

All foreign keys use ON DELETE CASCADE.
*/
package db
