// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/forms"
	"github.com/danielhkuo/taskflow/middleware"
	"github.com/danielhkuo/taskflow/models"
)

const msgNotAuthenticated = "Authentication credentials were not provided."

// TodoAPIHandler serves /api/todos/. Every route expects middleware.Authenticate
// to have run first.
type TodoAPIHandler struct {
	db  *db.DB
	cfg cliparse.Config
}

func NewTodoAPIHandler(database *db.DB, cfg cliparse.Config) *TodoAPIHandler {
	return &TodoAPIHandler{db: database, cfg: cfg}
}

// List handles GET /api/todos/
func (h *TodoAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		// Anonymous readers see an empty collection
		middleware.JSONResponse(w, http.StatusOK, []models.Todo{})
		return
	}

	params := r.URL.Query()
	todos, err := listTodos(r.Context(), h.db, todoFilter{
		OwnerID:   &user.ID,
		Completed: parseBoolParam(params.Get("completed")),
		Search:    params.Get("search"),
	})
	if err != nil {
		slog.Error("failed to list todos", "error", err, "user_id", user.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, todos)
}

// Create handles POST /api/todos/
func (h *TodoAPIHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}

	req, ok := decodeTodoRequest(w, r, true)
	if !ok {
		return
	}

	completed := req.Completed != nil && *req.Completed
	todo, err := insertTodo(r.Context(), h.db, user.ID, *req.Title, req.Description, completed)
	if err != nil {
		slog.Error("failed to create todo", "error", err, "user_id", user.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create todo")
		return
	}

	slog.Info("todo created", "todo_id", todo.ID, "user_id", user.ID)
	middleware.JSONResponse(w, http.StatusCreated, todo)
}

// Retrieve handles GET /api/todos/{id}/
func (h *TodoAPIHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	id, ok := pathID(r)
	if !ok || user == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found.")
		return
	}

	todo, err := getOwnedTodo(r.Context(), h.db, id, user.ID)
	if errors.Is(err, errNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found.")
		return
	}
	if err != nil {
		slog.Error("failed to get todo", "error", err, "todo_id", id)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, todo)
}

// Update handles PUT /api/todos/{id}/
func (h *TodoAPIHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// PartialUpdate handles PATCH /api/todos/{id}/
func (h *TodoAPIHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *TodoAPIHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	todo, user, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	req, ok := decodeTodoRequest(w, r, !partial)
	if !ok {
		return
	}

	// Fields left out of the body keep their stored values
	if req.Title != nil {
		todo.Title = *req.Title
	}
	if req.Description != nil {
		todo.Description = req.Description
	}
	if req.Completed != nil {
		todo.Completed = *req.Completed
	}

	todo, err := saveTodo(r.Context(), h.db, todo, user.ID)
	if errors.Is(err, errNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found.")
		return
	}
	if err != nil {
		slog.Error("failed to update todo", "error", err, "todo_id", todo.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update todo")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, todo)
}

// Destroy handles DELETE /api/todos/{id}/
func (h *TodoAPIHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	todo, user, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	err := deleteTodo(r.Context(), h.db, todo.ID, user.ID)
	if err != nil && !errors.Is(err, errNotFound) {
		slog.Error("failed to delete todo", "error", err, "todo_id", todo.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete todo")
		return
	}

	slog.Info("todo deleted", "todo_id", todo.ID, "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Toggle handles POST /api/todos/{id}/toggle/
func (h *TodoAPIHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	todo, user, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := toggleTodo(r.Context(), h.db, todo.ID, user.ID); err != nil {
		if errors.Is(err, errNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Not found.")
			return
		}
		slog.Error("failed to toggle todo", "error", err, "todo_id", todo.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to toggle todo")
		return
	}

	toggled, err := getOwnedTodo(r.Context(), h.db, todo.ID, user.ID)
	if err != nil {
		slog.Error("failed to reload todo", "error", err, "todo_id", todo.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, toggled)
}

// loadOwned is shared by the write routes: 401 for anonymous callers,
// 404 for ids the caller does not own.
func (h *TodoAPIHandler) loadOwned(w http.ResponseWriter, r *http.Request) (models.Todo, *models.User, bool) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, msgNotAuthenticated)
		return models.Todo{}, nil, false
	}

	id, ok := pathID(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found.")
		return models.Todo{}, nil, false
	}

	todo, err := getOwnedTodo(r.Context(), h.db, id, user.ID)
	if errors.Is(err, errNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found.")
		return models.Todo{}, nil, false
	}
	if err != nil {
		slog.Error("failed to get todo", "error", err, "todo_id", id)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Todo{}, nil, false
	}
	return todo, user, true
}

// decodeTodoRequest parses and validates the body. requireTitle is set for
// create and full update.
func decodeTodoRequest(w http.ResponseWriter, r *http.Request, requireTitle bool) (models.TodoRequest, bool) {
	var req models.TodoRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return req, false
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		req.Title = &title
	}

	errs := forms.Validate(req)
	if requireTitle && req.Title == nil {
		errs.Add("title", "This field is required.")
	}
	if !errs.Valid() {
		middleware.ErrorResponse(w, http.StatusBadRequest, errorSummary(errs))
		return req, false
	}
	return req, true
}

// errorSummary flattens field errors into "field: message" pairs sorted by field.
func errorSummary(errs forms.Errors) string {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			parts = append(parts, errs[f])
			continue
		}
		parts = append(parts, f+": "+errs[f])
	}
	return strings.Join(parts, "; ")
}
