// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package views

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/taskflow/forms"
	"github.com/danielhkuo/taskflow/models"
)

func TestNew_ParsesEveryPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	for _, name := range []string{
		"todo_list", "todo_all", "todo_detail", "todo_form", "todo_confirm_delete",
		"register", "login", "signup", "activation_sent", "activation_complete",
		"activation_invalid", "profile", "error",
	} {
		assert.Contains(t, r.pages, name)
	}
	assert.NotContains(t, r.pages, "base")
}

func TestRender_ListWithNavCount(t *testing.T) {
	r := MustNew()
	desc := "two litres"
	w := httptest.NewRecorder()

	r.Render(w, http.StatusOK, "todo_list", Page{
		Title:        "My tasks",
		User:         &models.User{ID: 1, Username: "alice"},
		NavTaskCount: 1234,
		Todos: []models.Todo{
			{ID: 7, Title: "Buy <milk>", Description: &desc, CreatedAt: time.Now().Add(-2 * time.Hour)},
		},
		CompletedCount: 0,
		PendingCount:   1,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "Buy &lt;milk&gt;", "titles are escaped")
	assert.Contains(t, body, "1,234")
	assert.Contains(t, body, "2 hours ago")
	assert.Contains(t, body, "/todo/7/toggle/")
	assert.Contains(t, body, "alice")
}

func TestRender_FormErrors(t *testing.T) {
	r := MustNew()
	w := httptest.NewRecorder()

	r.Render(w, http.StatusOK, "todo_form", Page{
		Title:  "Create Todo",
		User:   &models.User{Username: "alice"},
		Form:   forms.TodoForm{Title: "", Description: "kept"},
		Errors: forms.Errors{"title": "This field is required."},
		Action: "/todo/create/",
	})

	body := w.Body.String()
	assert.Contains(t, body, "This field is required.")
	assert.Contains(t, body, "kept")
	assert.Contains(t, body, `action="/todo/create/"`)
}

func TestRender_AnonymousNav(t *testing.T) {
	r := MustNew()
	w := httptest.NewRecorder()

	r.Render(w, http.StatusOK, "login", Page{
		Form:   forms.LoginForm{},
		Action: "/accounts/login/",
		Next:   "/accounts/profile/",
	})

	body := w.Body.String()
	assert.Contains(t, body, `href="/register/"`)
	assert.NotContains(t, body, "Log out")
	assert.Contains(t, body, `value="/accounts/profile/"`)
}

func TestRender_UnknownPage(t *testing.T) {
	r := MustNew()
	w := httptest.NewRecorder()

	r.Render(w, http.StatusOK, "nope", Page{})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestError(t *testing.T) {
	r := MustNew()
	w := httptest.NewRecorder()

	r.Error(w, http.StatusNotFound, Page{Message: "No todo matches the given query."})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "404 Not Found")
	assert.Contains(t, w.Body.String(), "No todo matches the given query.")
}
