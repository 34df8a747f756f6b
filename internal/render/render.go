// Package render turns session snapshots into the HTML page.
package render

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"physiqueAi/internal/physique"
	"physiqueAi/internal/session"
)

//go:embed templates/page.html
var pageTemplate string

// StateEvent names the server-sent event carrying a session snapshot. The busy
// page reloads on the first one that reports no call in flight.
const StateEvent = "state"

// Renderer holds the parsed page template.
type Renderer struct {
	page *template.Template
	now  func() time.Time
}

// New parses the embedded template.
func New() (*Renderer, error) {
	if strings.TrimSpace(pageTemplate) == "" {
		return nil, fmt.Errorf("render: embedded page template is empty")
	}
	page, err := template.New("page").Funcs(template.FuncMap{
		"imageSrc": imageSrc,
	}).Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("render: parse page: %w", err)
	}
	return &Renderer{page: page, now: time.Now}, nil
}

type pageData struct {
	State      session.State
	Result     *physique.AnalysisResult
	StateEvent string
	Year       int
}

// Page writes the page for state.
func (r *Renderer) Page(w io.Writer, state session.State) error {
	data := pageData{
		State:      state,
		StateEvent: StateEvent,
		Year:       r.now().Year(),
	}
	if state.HasResult() {
		data.Result = state.Result
	}
	if err := r.page.Execute(w, data); err != nil {
		return fmt.Errorf("render: execute page: %w", err)
	}
	return nil
}

// imageSrc lets image data URIs and local paths through the URL sanitizer.
func imageSrc(src string) template.URL {
	switch {
	case strings.HasPrefix(src, "data:image/"),
		strings.HasPrefix(src, "/"),
		strings.HasPrefix(src, "https://"),
		strings.HasPrefix(src, "http://"):
		return template.URL(src)
	default:
		return template.URL("#")
	}
}
