package output

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// MarkdownOptions configures rendering of agent messages.
type MarkdownOptions struct {
	Enabled  bool
	Style    string
	WordWrap int
}

// markdownRenderer renders markdown lazily; the glamour renderer is built on
// first use.
type markdownRenderer struct {
	opts     MarkdownOptions
	once     sync.Once
	renderer *glamour.TermRenderer
	err      error
}

func newMarkdownRenderer(opts MarkdownOptions) *markdownRenderer {
	if opts.Style == "" {
		opts.Style = "dark"
	}
	if opts.WordWrap <= 0 {
		opts.WordWrap = 100
	}
	return &markdownRenderer{opts: opts}
}

// render returns text rendered for the terminal, or text unchanged when
// rendering is disabled or fails.
func (m *markdownRenderer) render(text string) string {
	if !m.opts.Enabled || strings.TrimSpace(text) == "" {
		return text
	}

	m.once.Do(func() {
		m.renderer, m.err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.opts.Style),
			glamour.WithWordWrap(m.opts.WordWrap),
		)
	})
	if m.err != nil {
		return text
	}

	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
