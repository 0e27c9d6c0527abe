package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"structify/internal/web/models"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Page Rendering
// ============================================================

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{"upload", "processing", "results", "error"}

type refresh struct {
	Seconds int
	URL     string
}

// page общие данные шаблона layout.
type page struct {
	Title   string
	Notices []models.Notice
	Refresh *refresh
	Data    any
}

type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"mb": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render отдает страницу с заданным статусом.
func (r *Renderer) Render(c fiber.Ctx, status int, name string, p page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}
