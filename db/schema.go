// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"

	"github.com/danielhkuo/taskflow/models"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, d *DB) error {
	schema := sqliteSchema
	if d.Dialect == models.DialectPostgres {
		schema = postgresSchema
	}

	// Statements run on the raw connection: DDL carries no placeholders.
	_, err := d.DB.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const postgresSchema = `
-- Accounts
CREATE TABLE IF NOT EXISTS account (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(150) NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    date_joined TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_login TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_account_username_lower ON account(LOWER(username));
CREATE INDEX IF NOT EXISTS idx_account_email_lower ON account(LOWER(email));

-- Todos
CREATE TABLE IF NOT EXISTS todo (
    id BIGSERIAL PRIMARY KEY,
    owner_id BIGINT REFERENCES account(id) ON DELETE CASCADE,
    title VARCHAR(200) NOT NULL,
    description TEXT,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_todo_owner_id ON todo(owner_id);
CREATE INDEX IF NOT EXISTS idx_todo_created_at ON todo(created_at DESC);

-- API tokens (one per account)
CREATE TABLE IF NOT EXISTS api_token (
    key CHAR(40) PRIMARY KEY,
    user_id BIGINT NOT NULL UNIQUE REFERENCES account(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Browser sessions
CREATE TABLE IF NOT EXISTS session (
    key TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES account(id) ON DELETE CASCADE,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_session_expires_at ON session(expires_at);
`

const sqliteSchema = `
-- Accounts
CREATE TABLE IF NOT EXISTS account (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    date_joined TIMESTAMP NOT NULL,
    last_login TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_account_email ON account(email COLLATE NOCASE);

-- Todos
CREATE TABLE IF NOT EXISTS todo (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER REFERENCES account(id) ON DELETE CASCADE,
    title TEXT NOT NULL CHECK (length(title) <= 200),
    description TEXT,
    completed BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_todo_owner_id ON todo(owner_id);
CREATE INDEX IF NOT EXISTS idx_todo_created_at ON todo(created_at);

-- API tokens (one per account)
CREATE TABLE IF NOT EXISTS api_token (
    key TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL UNIQUE REFERENCES account(id) ON DELETE CASCADE,
    created_at TIMESTAMP NOT NULL
);

-- Browser sessions
CREATE TABLE IF NOT EXISTS session (
    key TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES account(id) ON DELETE CASCADE,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_expires_at ON session(expires_at);
`
