package text

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns plaque markdown into terminal text.
type Renderer interface {
	Render(md string, width int) (string, error)
}

// glamourRenderer renders with glamour's dark style, word-wrapped to width.
type glamourRenderer struct {
	style string
}

// NewGlamourRenderer returns a markdown renderer using the named glamour
// standard style ("dark", "light", "notty").
func NewGlamourRenderer(style string) Renderer {
	if style == "" {
		style = "dark"
	}
	return &glamourRenderer{style: style}
}

func (g *glamourRenderer) Render(md string, width int) (string, error) {
	if width <= 0 {
		width = 72
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle(g.style), glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// plainRenderer strips markdown markers and keeps line structure. Used as
// fallback when glamour fails.
type plainRenderer struct{}

func NewPlainRenderer() Renderer { return plainRenderer{} }

func (plainRenderer) Render(md string, width int) (string, error) {
	var b strings.Builder
	for i, line := range strings.Split(strings.TrimRight(md, "\n"), "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		line = strings.TrimLeft(line, "# ")
		line = strings.NewReplacer("**", "", "__", "", "*", "", "`", "").Replace(line)
		b.WriteString(line)
	}
	return b.String(), nil
}

// WithFallback returns a renderer that prefers primary and falls back on error.
func WithFallback(primary, fallback Renderer) Renderer {
	return &fallbackRenderer{p: primary, f: fallback}
}

type fallbackRenderer struct{ p, f Renderer }

func (r *fallbackRenderer) Render(md string, width int) (string, error) {
	if r.p == nil {
		return r.f.Render(md, width)
	}
	if s, err := r.p.Render(md, width); err == nil {
		return s, nil
	}
	return r.f.Render(md, width)
}
