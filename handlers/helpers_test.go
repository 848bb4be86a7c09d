// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/mail"
	"github.com/danielhkuo/taskflow/middleware"
	"github.com/danielhkuo/taskflow/models"
	"github.com/danielhkuo/taskflow/sessions"
	"github.com/danielhkuo/taskflow/testutil"
	"github.com/danielhkuo/taskflow/views"
)

// asUser attaches u to the request the way the auth middleware would.
func asUser(r *http.Request, u models.User) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), &u))
}

func newWebHandler(t *testing.T) (*TodoWebHandler, *db.DB) {
	t.Helper()
	database := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	h := NewTodoWebHandler(database, cfg, views.MustNew(), sessions.NewStore(database, cfg.SessionAge))
	return h, database
}

func newAccountHandler(t *testing.T) (*AccountHandler, *db.DB, *mail.MemoryMailer) {
	t.Helper()
	database := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	outbox := &mail.MemoryMailer{}
	h := NewAccountHandler(database, cfg, views.MustNew(), sessions.NewStore(database, cfg.SessionAge), outbox)
	return h, database, outbox
}

func getPage(path string) *http.Request {
	return httptest.NewRequest("GET", path, nil)
}

func postForm(path string, values url.Values) *http.Request {
	return testutil.MakeFormRequest(path, values, nil)
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == sessions.CookieName && c.Value != "" {
			return c
		}
	}
	return nil
}
