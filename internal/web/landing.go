// Package web renders the static landing page listing the published dataset
// files.
package web

import (
	"html/template"
	"strings"
	"time"
)

const landingTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: sans-serif; margin: 2rem auto; max-width: 48rem; padding: 0 1rem; }
    li { margin: 0.2rem 0; }
    footer { margin-top: 2rem; color: #666; font-size: 0.85rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <p>{{len .Paths}} data files available.</p>
  <ul>
  {{- range .Paths}}
    <li><a href="{{.}}">{{.}}</a></li>
  {{- end}}
  </ul>
  <footer>Generated {{.GeneratedAt}}</footer>
</body>
</html>
`

// Landing renders the dataset index page from a sorted list of relative file
// paths.
type Landing struct {
	title string
	tmpl  *template.Template
	now   func() time.Time
}

// NewLanding creates a renderer with the given page title.
func NewLanding(title string) *Landing {
	return &Landing{
		title: title,
		tmpl:  template.Must(template.New("landing").Parse(landingTemplate)),
		now:   time.Now,
	}
}

// Render produces the HTML document listing the given paths.
func (l *Landing) Render(paths []string) (string, error) {
	var buf strings.Builder
	err := l.tmpl.Execute(&buf, struct {
		Title       string
		Paths       []string
		GeneratedAt string
	}{
		Title:       l.title,
		Paths:       paths,
		GeneratedAt: l.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
