package render

import (
	_ "embed"
	"html/template"
	"io"

	"github.com/rotisserie/eris"
)

//go:embed page.html
var pageHTML string

var pageTmpl = template.Must(template.New("page").Parse(pageHTML))

// PageData fills the dashboard page.
type PageData struct {
	Title       string
	Years       []int
	DefaultYear int
	// PlanURL is the endpoint the page fetches and posts render plans to.
	PlanURL string
	// SearchURL lists constituencies for the fallback selector.
	SearchURL string
}

// Page writes the dashboard HTML page.
func Page(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "UK General Election Results"
	}
	if data.PlanURL == "" {
		data.PlanURL = "/api/plan"
	}
	if data.SearchURL == "" {
		data.SearchURL = "/api/constituencies"
	}
	if err := pageTmpl.Execute(w, data); err != nil {
		return eris.Wrap(err, "render: page")
	}
	return nil
}
