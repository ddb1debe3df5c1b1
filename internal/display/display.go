// Package display renders a derived system for interactive inspection. It
// never touches the emitted artifact.
package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"romgen/internal/derive"
	"romgen/internal/emit"
	"romgen/internal/logging"
	"romgen/internal/modes"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// DefaultWidth is the word-wrap width of the rendered report.
const DefaultWidth = 100

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#8BC34A"})
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#5c6370", Dark: "#9aa5b1"})
)

// modeMu serializes display mode; the lipgloss background flag is global.
var modeMu sync.Mutex

// WithDisplayMode switches the terminal renderer into display mode for the
// duration of fn. The previous mode is restored on every exit path, panics
// included.
func WithDisplayMode(fn func() error) error {
	modeMu.Lock()
	defer modeMu.Unlock()

	prev := lipgloss.HasDarkBackground()
	lipgloss.SetHasDarkBackground(true)
	defer lipgloss.SetHasDarkBackground(prev)

	return fn()
}

// Displayer shows a derived system to the user.
type Displayer interface {
	Show(ctx context.Context, set modes.Set, psi, theta derive.RHS) error
}

// Terminal renders the report as styled markdown to Out.
type Terminal struct {
	Out   io.Writer
	Width int
}

// NewTerminal creates a terminal displayer writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{Out: out, Width: DefaultWidth}
}

func (t *Terminal) Show(ctx context.Context, set modes.Set, psi, theta derive.RHS) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WithDisplayMode(func() error {
		body, err := renderMarkdown(Report(set, psi, theta), t.Width)
		if err != nil {
			return err
		}
		title := titleStyle.Render(fmt.Sprintf("%s  ", emit.FunctionName(set.NumModes()))) +
			mutedStyle.Render(fmt.Sprintf("%d psi + %d theta modes", len(set.Psi), len(set.Theta)))
		if _, err := fmt.Fprintf(t.Out, "%s\n%s", title, body); err != nil {
			return err
		}
		logging.Get(logging.CategoryPipeline).Debug("displayed system", zap.Int("num_modes", set.NumModes()))
		return nil
	})
}

// RenderMarkdown renders md for the terminal inside display mode.
func RenderMarkdown(md string, width int) (string, error) {
	var out string
	err := WithDisplayMode(func() error {
		var err error
		out, err = renderMarkdown(md, width)
		return err
	})
	return out, err
}

// renderMarkdown must run inside display mode.
func renderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	style := "light"
	if lipgloss.HasDarkBackground() {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// ModeTable is the markdown table mapping every mode to its flat index.
func ModeTable(set modes.Set) string {
	var b strings.Builder
	b.WriteString("| index | mode | symbol |\n|---|---|---|\n")
	for _, e := range set.Entries() {
		fmt.Fprintf(&b, "| x(%d) | %s | `%s` |\n", e.Index, e.Label(), e.Symbol())
	}
	return b.String()
}

// Report builds the markdown shown in display mode: the mode table followed
// by one time-derivative equation per mode.
func Report(set modes.Set, psi, theta derive.RHS) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Truncated system (%d modes)\n\n", set.NumModes())
	b.WriteString(ModeTable(set))
	writeEquations(&b, "Streamfunction", modes.Psi, set, psi)
	writeEquations(&b, "Temperature", modes.Theta, set, theta)
	return b.String()
}

func writeEquations(b *strings.Builder, heading string, f modes.Family, set modes.Set, rhs derive.RHS) {
	ms := set.Modes(f)
	if len(ms) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n```\n", heading)
	for i, m := range ms {
		expr := "?"
		if i < len(rhs) {
			expr = string(rhs[i])
		}
		fmt.Fprintf(b, "d/dt %s = %s\n", modes.Symbol(f, m), expr)
	}
	b.WriteString("```\n")
}
