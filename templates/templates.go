// Package templates renders the embedded HTML pages through echo.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/labstack/echo/v4"
)

const layout = "base.html"

//go:embed *.html
var files embed.FS

// Registry maps a page name to that page parsed together with the layout.
// The layout is parsed first so a page can override its blocks.
type Registry struct {
	templates map[string]*template.Template
}

func New(funcs template.FuncMap) (*Registry, error) {
	names, err := fs.Glob(files, "*.html")
	if err != nil {
		return nil, err
	}
	r := &Registry{templates: map[string]*template.Template{}}
	for _, name := range names {
		if name == layout {
			continue
		}
		t, err := template.New(name).Funcs(funcs).ParseFS(files, layout, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

func (r *Registry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	return tmpl.ExecuteTemplate(w, layout, data)
}
