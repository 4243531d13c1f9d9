package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"astraconsole/internal/astra"
	"astraconsole/internal/prefs"
)

//go:embed templates/*.html
var templateFS embed.FS

type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	v := &views{pages: make(map[string]*template.Template)}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.New(name).Funcs(viewFuncs).ParseFS(templateFS, "templates/layout.html", f)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

func (v *views) execute(w io.Writer, name string, data any) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

var viewFuncs = template.FuncMap{
	"markdown": renderMarkdown,
	"when": func(t astra.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	},
	"humanize": func(s string) string {
		s = strings.ReplaceAll(s, "_", " ")
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"provider": prefs.Label,
	"distance": func(d *float64) string {
		if d == nil {
			return "-"
		}
		return fmt.Sprintf("%.4f", *d)
	},
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"join":    strings.Join,
	"has":     func(list []string, v string) bool { return slices.Contains(list, v) },
	"add":     func(a, b int) int { return a + b },
	"meta": func(m map[string]any, key string) string {
		if v, ok := m[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	},
}
