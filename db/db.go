// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/taskflow/models"
)

// DB wraps *sql.DB so queries can be written once with ? placeholders and
// run against either dialect.
type DB struct {
	*sql.DB
	Dialect string
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dialect, url string) (*DB, error) {
	driver := dialect
	switch dialect {
	case models.DialectPostgres:
	case models.DialectSQLite:
		url = withSQLitePragmas(url)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dialect)
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == models.DialectSQLite {
		// SQLite allows a single writer; one connection also keeps
		// ":memory:" databases alive for the life of the pool.
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxLifetime(0)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{DB: conn, Dialect: dialect}, nil
}

func withSQLitePragmas(url string) string {
	if strings.Contains(url, "_pragma=foreign_keys") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
func (d *DB) Rebind(query string) string {
	if d.Dialect != models.DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inString = !inString
		}
		if c == '?' && !inString {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

// Exec, Query and QueryRow shadow the embedded methods so callers cannot
// skip Rebind by accident.

func (d *DB) Exec(query string, args ...any) (sql.Result, error) {
	return d.ExecContext(context.Background(), query, args...)
}

func (d *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return d.QueryContext(context.Background(), query, args...)
}

func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	return d.QueryRowContext(context.Background(), query, args...)
}
