// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/taskflow/forms"
	"github.com/danielhkuo/taskflow/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const baseTemplate = "base.html"

// Page is the data every template receives.
type Page struct {
	Title        string
	User         *models.User
	NavTaskCount int

	// Form holds the submitted values when re-rendering; Errors the failures.
	Form   any
	Errors forms.Errors
	Action string
	Next   string

	Todo           *models.Todo
	Todos          []models.Todo
	CompletedCount int
	PendingCount   int

	Status  int
	Message string
}

// Renderer owns one template set per page, each a clone of the base layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"since": func(t time.Time) string {
		return humanize.Time(t)
	},
	"date": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"comma": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"statusText": http.StatusText,
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	base, err := template.New(baseTemplate).Funcs(funcs).ParseFS(templateFS, "templates/"+baseTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		page := path.Base(name)
		if page == baseTemplate {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, name); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page, err)
		}
		r.pages[strings.TrimSuffix(page, ".html")] = t
	}

	return r, nil
}

// MustNew is New for program start-up and tests.
func MustNew() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes the named page with the given status code.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p Page) {
	t, ok := r.pages[name]
	if !ok {
		slog.Error("unknown template", "name", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Render into a buffer so a template error does not leave half a page
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, baseTemplate, p); err != nil {
		slog.Error("failed to render template", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// Error renders the generic error page.
func (r *Renderer) Error(w http.ResponseWriter, status int, p Page) {
	p.Status = status
	if p.Title == "" {
		p.Title = http.StatusText(status)
	}
	r.Render(w, status, "error", p)
}
