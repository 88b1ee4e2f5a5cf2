// Package render turns a parsed post into the archived HTML document.
package render

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cyarchive/pkg/models"
)

// TimestampLayout is how {timestamp} is rendered
const TimestampLayout = "2006-01-02T15:04:05"

//go:embed templates/post.html
var defaultTemplate string

// Renderer substitutes post fields into a template. Values are inserted
// verbatim without HTML escaping.
type Renderer struct {
	template string
}

// New uses the given template text
func New(template string) *Renderer {
	return &Renderer{template: template}
}

// Default uses the built-in template
func Default() *Renderer {
	return New(defaultTemplate)
}

// FromFile loads the template at path, or the built-in one when path is empty
func FromFile(path string) (*Renderer, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return New(string(data)), nil
}

// Render produces the final document. Image blocks that were never resolved
// are left out.
func (r *Renderer) Render(post *models.Post) []byte {
	replacer := strings.NewReplacer(
		"{title}", post.Title,
		"{timestamp}", post.Timestamp.Format(TimestampLayout),
		"{privacy}", post.Privacy,
		"{content}", Content(post.Blocks),
	)
	return []byte(replacer.Replace(r.template))
}

// Content renders blocks one per line
func Content(blocks []models.Block) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch {
		case b.Kind == models.TextBlock:
			lines = append(lines, "<p>"+b.Text+"</p>")
		case b.Resolved():
			lines = append(lines, `<img src="`+b.Path+`">`)
		}
	}
	return strings.Join(lines, "\n")
}
