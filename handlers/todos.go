// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/models"
)

const todoSelect = `
	SELECT t.id, t.owner_id, a.username, t.title, t.description, t.completed, t.created_at, t.updated_at
	FROM todo t
	LEFT JOIN account a ON a.id = t.owner_id
`

const todoOrder = " ORDER BY t.created_at DESC, t.id DESC"

func scanTodo(row rowScanner) (models.Todo, error) {
	var t models.Todo
	var owner sql.NullInt64
	var ownerName, desc sql.NullString
	err := row.Scan(&t.ID, &owner, &ownerName, &t.Title, &desc, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if owner.Valid {
		t.Owner = &owner.Int64
	}
	if ownerName.Valid {
		t.OwnerUsername = &ownerName.String
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	return t, nil
}

// todoFilter narrows listTodos. A nil OwnerID lists every user's todos.
type todoFilter struct {
	OwnerID   *int64
	Completed *bool
	Search    string
}

func listTodos(ctx context.Context, d *db.DB, f todoFilter) ([]models.Todo, error) {
	var where []string
	var args []any
	if f.OwnerID != nil {
		where = append(where, "t.owner_id = ?")
		args = append(args, *f.OwnerID)
	}
	if f.Completed != nil {
		where = append(where, "t.completed = ?")
		args = append(args, *f.Completed)
	}
	if f.Search != "" {
		where = append(where, `LOWER(t.title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(f.Search))+"%")
	}

	query := todoSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += todoOrder

	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// getOwnedTodo returns errNotFound for missing ids and for other users' rows alike.
func getOwnedTodo(ctx context.Context, d *db.DB, id, ownerID int64) (models.Todo, error) {
	t, err := scanTodo(d.QueryRowContext(ctx, todoSelect+" WHERE t.id = ? AND t.owner_id = ?", id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return t, errNotFound
	}
	return t, err
}

func insertTodo(ctx context.Context, d *db.DB, ownerID int64, title string, description *string, completed bool) (models.Todo, error) {
	now := time.Now().UTC()
	var id int64
	err := d.QueryRowContext(ctx, `
		INSERT INTO todo (owner_id, title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, ownerID, title, description, completed, now, now).Scan(&id)
	if err != nil {
		return models.Todo{}, fmt.Errorf("failed to insert todo: %w", err)
	}
	return getOwnedTodo(ctx, d, id, ownerID)
}

// saveTodo writes title, description and completed back; ownership is part of the WHERE clause.
func saveTodo(ctx context.Context, d *db.DB, t models.Todo, ownerID int64) (models.Todo, error) {
	res, err := d.ExecContext(ctx, `
		UPDATE todo SET title = ?, description = ?, completed = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, t.Title, t.Description, t.Completed, time.Now().UTC(), t.ID, ownerID)
	if err != nil {
		return t, fmt.Errorf("failed to update todo: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return t, err
	}
	return getOwnedTodo(ctx, d, t.ID, ownerID)
}

func toggleTodo(ctx context.Context, d *db.DB, id, ownerID int64) error {
	res, err := d.ExecContext(ctx, `
		UPDATE todo SET completed = NOT completed, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, time.Now().UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to toggle todo: %w", err)
	}
	return expectOneRow(res)
}

func deleteTodo(ctx context.Context, d *db.DB, id, ownerID int64) error {
	res, err := d.ExecContext(ctx, "DELETE FROM todo WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}

// countTodos returns how many todos the user owns and how many of them are completed.
func countTodos(ctx context.Context, d *db.DB, ownerID int64) (total, completed int, err error) {
	err = d.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0)
		FROM todo WHERE owner_id = ?
	`, ownerID).Scan(&total, &completed)
	if err != nil {
		err = fmt.Errorf("failed to count todos: %w", err)
	}
	return total, completed, err
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseBoolParam understands the usual spellings; anything else means "no filter".
func parseBoolParam(s string) *bool {
	var v bool
	switch strings.ToLower(s) {
	case "true", "1", "t", "yes":
		v = true
	case "false", "0", "f", "no":
		v = false
	default:
		return nil
	}
	return &v
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// optionalText maps a blank form value to NULL.
func optionalText(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
