// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/forms"
	"github.com/danielhkuo/taskflow/middleware"
	"github.com/danielhkuo/taskflow/models"
	"github.com/danielhkuo/taskflow/sessions"
	"github.com/danielhkuo/taskflow/views"
)

const msgNoTodo = "No todo matches the given query."

// TodoWebHandler serves the HTML to-do pages. Routes other than register,
// login and logout expect middleware.LoginRequired.
type TodoWebHandler struct {
	site
}

func NewTodoWebHandler(database *db.DB, cfg cliparse.Config, renderer *views.Renderer, store *sessions.Store) *TodoWebHandler {
	return &TodoWebHandler{site{db: database, cfg: cfg, views: renderer, sessions: store}}
}

// List handles GET /
func (h *TodoWebHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	todos, err := listTodos(r.Context(), h.db, todoFilter{OwnerID: &user.ID})
	if err != nil {
		h.serverError(w, r, "failed to list todos", err)
		return
	}

	p := h.page(r, "My tasks")
	p.Todos = todos
	for _, t := range todos {
		if t.Completed {
			p.CompletedCount++
		} else {
			p.PendingCount++
		}
	}
	h.views.Render(w, http.StatusOK, "todo_list", p)
}

// All handles GET /all/, a read-only listing across every user
func (h *TodoWebHandler) All(w http.ResponseWriter, r *http.Request) {
	todos, err := listTodos(r.Context(), h.db, todoFilter{})
	if err != nil {
		h.serverError(w, r, "failed to list all todos", err)
		return
	}

	p := h.page(r, "Everyone's tasks")
	p.Todos = todos
	h.views.Render(w, http.StatusOK, "todo_all", p)
}

// Detail handles GET /todo/{id}/
func (h *TodoWebHandler) Detail(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	p := h.page(r, todo.Title)
	p.Todo = &todo
	h.views.Render(w, http.StatusOK, "todo_detail", p)
}

// Create handles GET and POST /todo/create/
func (h *TodoWebHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	p := h.page(r, "Create Todo")
	p.Action = "/todo/create/"

	if r.Method != http.MethodPost {
		p.Form = forms.TodoForm{}
		h.views.Render(w, http.StatusOK, "todo_form", p)
		return
	}

	form, errs, ok := h.bindTodoForm(w, r)
	if !ok {
		return
	}
	if !errs.Valid() {
		p.Form, p.Errors = form, errs
		h.views.Render(w, http.StatusOK, "todo_form", p)
		return
	}

	todo, err := insertTodo(r.Context(), h.db, user.ID, form.Title, optionalText(form.Description), form.Completed)
	if err != nil {
		h.serverError(w, r, "failed to create todo", err)
		return
	}

	slog.Info("todo created", "todo_id", todo.ID, "user_id", user.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Edit handles GET and POST /todo/{id}/edit/
func (h *TodoWebHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	todo, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	p := h.page(r, "Edit Todo")
	p.Todo = &todo
	p.Action = "/todo/" + strconv.FormatInt(todo.ID, 10) + "/edit/"

	if r.Method != http.MethodPost {
		desc := ""
		if todo.Description != nil {
			desc = *todo.Description
		}
		p.Form = forms.TodoForm{Title: todo.Title, Description: desc, Completed: todo.Completed}
		h.views.Render(w, http.StatusOK, "todo_form", p)
		return
	}

	form, errs, ok := h.bindTodoForm(w, r)
	if !ok {
		return
	}
	if !errs.Valid() {
		p.Form, p.Errors = form, errs
		h.views.Render(w, http.StatusOK, "todo_form", p)
		return
	}

	todo.Title = form.Title
	todo.Description = optionalText(form.Description)
	todo.Completed = form.Completed
	if _, err := saveTodo(r.Context(), h.db, todo, user.ID); err != nil {
		if errors.Is(err, errNotFound) {
			h.notFound(w, r, msgNoTodo)
			return
		}
		h.serverError(w, r, "failed to update todo", err)
		return
	}

	http.Redirect(w, r, "/todo/"+strconv.FormatInt(todo.ID, 10)+"/", http.StatusFound)
}

// Delete handles GET (confirmation) and POST /todo/{id}/delete/
func (h *TodoWebHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	todo, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if r.Method != http.MethodPost {
		p := h.page(r, "Delete task")
		p.Todo = &todo
		h.views.Render(w, http.StatusOK, "todo_confirm_delete", p)
		return
	}

	if err := deleteTodo(r.Context(), h.db, todo.ID, user.ID); err != nil && !errors.Is(err, errNotFound) {
		h.serverError(w, r, "failed to delete todo", err)
		return
	}

	slog.Info("todo deleted", "todo_id", todo.ID, "user_id", user.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Toggle handles POST /todo/{id}/toggle/
func (h *TodoWebHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r, msgNoTodo)
		return
	}

	err := toggleTodo(r.Context(), h.db, id, user.ID)
	if errors.Is(err, errNotFound) {
		h.notFound(w, r, msgNoTodo)
		return
	}
	if err != nil {
		h.serverError(w, r, "failed to toggle todo", err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// Register handles GET and POST /register/. New accounts are active at once.
func (h *TodoWebHandler) Register(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Register")

	if r.Method != http.MethodPost {
		p.Form = forms.RegisterForm{}
		h.views.Render(w, http.StatusOK, "register", p)
		return
	}

	form, err := forms.ParseRegisterForm(r)
	if err != nil {
		h.views.Error(w, http.StatusBadRequest, p)
		return
	}
	p.Form = form

	errs := forms.Validate(form)
	var user *models.User
	if errs.Valid() {
		user, err = createUser(r.Context(), h.db, form.Username, "", form.Password1, true)
		if errors.Is(err, errUsernameTaken) {
			errs.Add("username", "A user with that username already exists.")
		} else if err != nil {
			h.serverError(w, r, "failed to register user", err)
			return
		}
	}
	if !errs.Valid() {
		p.Errors = errs
		h.views.Render(w, http.StatusOK, "register", p)
		return
	}

	if err := h.sessions.Login(r.Context(), w, r, user.ID, false); err != nil {
		h.serverError(w, r, "failed to start session", err)
		return
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Login handles GET and POST /login/
func (h *TodoWebHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, "/login/", "/")
}

// Logout handles GET and POST /logout/
func (h *TodoWebHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), w, r); err != nil {
		slog.Error("failed to end session", "error", err)
	}
	http.Redirect(w, r, "/login/", http.StatusFound)
}

// loadOwned renders the 404 page for missing or foreign todos.
func (h *TodoWebHandler) loadOwned(w http.ResponseWriter, r *http.Request) (models.Todo, bool) {
	user := middleware.CurrentUser(r.Context())
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r, msgNoTodo)
		return models.Todo{}, false
	}

	todo, err := getOwnedTodo(r.Context(), h.db, id, user.ID)
	if errors.Is(err, errNotFound) {
		h.notFound(w, r, msgNoTodo)
		return todo, false
	}
	if err != nil {
		h.serverError(w, r, "failed to get todo", err)
		return todo, false
	}
	return todo, true
}

func (h *TodoWebHandler) bindTodoForm(w http.ResponseWriter, r *http.Request) (forms.TodoForm, forms.Errors, bool) {
	form, err := forms.ParseTodoForm(r)
	if err != nil {
		h.views.Error(w, http.StatusBadRequest, h.page(r, ""))
		return form, nil, false
	}
	return form, forms.Validate(form), true
}
