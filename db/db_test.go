// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/taskflow/models"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		query   string
		want    string
	}{
		{"sqlite untouched", models.DialectSQLite, "SELECT * FROM todo WHERE id = ? AND owner_id = ?", "SELECT * FROM todo WHERE id = ? AND owner_id = ?"},
		{"postgres numbered", models.DialectPostgres, "SELECT * FROM todo WHERE id = ? AND owner_id = ?", "SELECT * FROM todo WHERE id = $1 AND owner_id = $2"},
		{"postgres skips literals", models.DialectPostgres, "SELECT '?' FROM todo WHERE id = ?", "SELECT '?' FROM todo WHERE id = $1"},
		{"no placeholders", models.DialectPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DB{Dialect: tt.dialect}
			assert.Equal(t, tt.want, d.Rebind(tt.query))
		})
	}
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	assert.Error(t, err)
}

func TestCreateSchema_SQLite(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, models.DialectSQLite, ":memory:")
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, CreateSchema(ctx, d))
	// Idempotent
	require.NoError(t, CreateSchema(ctx, d))

	now := time.Now().UTC()
	var userID int64
	err = d.QueryRowContext(ctx, `
		INSERT INTO account (username, email, password_hash, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, "alice", "alice@example.com", "hash", true, now).Scan(&userID)
	require.NoError(t, err)

	_, err = d.ExecContext(ctx, `
		INSERT INTO todo (owner_id, title, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, "Buy milk", false, now, now)
	require.NoError(t, err)

	var completed bool
	var createdAt time.Time
	err = d.QueryRowContext(ctx, "SELECT completed, created_at FROM todo WHERE owner_id = ?", userID).Scan(&completed, &createdAt)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.WithinDuration(t, now, createdAt, time.Second)

	// Deleting the account cascades to its todos
	_, err = d.ExecContext(ctx, "DELETE FROM account WHERE id = ?", userID)
	require.NoError(t, err)

	var count int
	require.NoError(t, d.QueryRowContext(ctx, "SELECT COUNT(*) FROM todo").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, models.DialectSQLite, ":memory:")
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, CreateSchema(ctx, d))

	insert := `INSERT INTO account (username, password_hash, date_joined) VALUES (?, 'x', ?)`
	_, err = d.Exec(insert, "alice", time.Now().UTC())
	require.NoError(t, err)

	_, err = d.Exec(insert, "alice", time.Now().UTC())
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(assert.AnError))
}
