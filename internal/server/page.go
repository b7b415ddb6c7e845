package server

import (
	"embed"
	"html/template"
	"io"

	"github.com/bakkerme/summary-desk/internal/render"
	"github.com/labstack/echo/v4"
)

//go:embed assets/*.html
var assets embed.FS

type pageRenderer struct {
	templates *template.Template
}

func newPageRenderer(markdown *render.Markdown) (*pageRenderer, error) {
	templates, err := template.New("pages").
		Funcs(template.FuncMap{"summaryHTML": markdown.HTML}).
		ParseFS(assets, "assets/*.html")
	if err != nil {
		return nil, err
	}
	return &pageRenderer{templates: templates}, nil
}

func (r *pageRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
