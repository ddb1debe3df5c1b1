package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"romgen/internal/emit"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true)
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
)

// confirmModel is a single-keystroke y/n question. Anything but y declines.
type confirmModel struct {
	prompt    string
	answered  bool
	confirmed bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.answered, m.confirmed = true, true
		return m, tea.Quit
	case "n", "q", "enter", "esc", "ctrl+c":
		m.answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.answered {
		answer := "no"
		if m.confirmed {
			answer = "yes"
		}
		return fmt.Sprintf("%s %s\n", promptStyle.Render(m.prompt+"?"), answer)
	}
	return fmt.Sprintf("%s %s ", promptStyle.Render(m.prompt), keyStyle.Render("(y/n)?"))
}

// TeaConfirmer asks through a bubbletea program.
type TeaConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (c *TeaConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	p := tea.NewProgram(confirmModel{prompt: prompt},
		tea.WithContext(ctx),
		tea.WithInput(c.In),
		tea.WithOutput(c.Out),
	)
	final, err := p.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, tea.ErrProgramKilled) {
			return false, ctxErr
		}
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	m, ok := final.(confirmModel)
	return ok && m.confirmed, nil
}

// NewConfirmer picks the interactive prompt when in is a terminal and a
// plain line reader otherwise.
func NewConfirmer(in *os.File, out io.Writer) emit.Confirmer {
	if term.IsTerminal(int(in.Fd())) {
		return &TeaConfirmer{In: in, Out: out}
	}
	return &emit.LineConfirmer{In: in, Out: out}
}
