// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package views renders the HTML pages.

Templates are embedded from templates/. Each page defines a "content" block
that is executed inside base.html:

	renderer := views.MustNew()
	renderer.Render(w, http.StatusOK, "todo_list", views.Page{
		Title:        "My tasks",
		User:         user,
		NavTaskCount: count,
		Todos:        todos,
	})

Besides the html/template builtins, pages may call since (relative time),
date, comma (thousands separators) and deref.
*/
package views
