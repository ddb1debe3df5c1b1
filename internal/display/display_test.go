package display

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"romgen/internal/derive"
	"romgen/internal/emit"
	"romgen/internal/modes"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDisplayMode_RestoresOnError(t *testing.T) {
	lipgloss.SetHasDarkBackground(false)
	t.Cleanup(func() { lipgloss.SetHasDarkBackground(false) })

	boom := errors.New("boom")
	err := WithDisplayMode(func() error {
		assert.True(t, lipgloss.HasDarkBackground())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, lipgloss.HasDarkBackground())
}

func TestWithDisplayMode_RestoresOnPanic(t *testing.T) {
	lipgloss.SetHasDarkBackground(false)
	t.Cleanup(func() { lipgloss.SetHasDarkBackground(false) })

	assert.Panics(t, func() {
		_ = WithDisplayMode(func() error { panic("render failed") })
	})
	assert.False(t, lipgloss.HasDarkBackground())

	// The mode lock must have been released.
	require.NoError(t, WithDisplayMode(func() error { return nil }))
}

func TestReport(t *testing.T) {
	psi := derive.RHS{"-sigma*psi_1_1 + sigma*theta_1_1"}
	theta := derive.RHS{"-4*pi**2*theta_0_2 + psi_1_1*theta_1_1", "-psi_1_1*theta_0_2 + r*psi_1_1 - theta_1_1"}

	md := Report(modes.Lorenz(), psi, theta)
	assert.Contains(t, md, "# Truncated system (3 modes)")
	assert.Contains(t, md, "| x(1) | p1,1 | `psi_1_1` |")
	assert.Contains(t, md, "| x(2) | t0,2 | `theta_0_2` |")
	assert.Contains(t, md, "| x(3) | t1,1 | `theta_1_1` |")
	assert.Contains(t, md, "## Streamfunction")
	assert.Contains(t, md, "d/dt psi_1_1 = -sigma*psi_1_1 + sigma*theta_1_1")
	assert.Contains(t, md, "d/dt theta_1_1 = -psi_1_1*theta_0_2 + r*psi_1_1 - theta_1_1")
}

func TestReport_OmitsEmptyFamily(t *testing.T) {
	set := modes.Set{Theta: []modes.Mode{{M: 0, N: 2}}}
	md := Report(set, nil, derive.RHS{"-theta_0_2"})
	assert.NotContains(t, md, "Streamfunction")
	assert.Contains(t, md, "## Temperature")
}

func TestTerminal_Show(t *testing.T) {
	lipgloss.SetHasDarkBackground(false)
	t.Cleanup(func() { lipgloss.SetHasDarkBackground(false) })

	var out bytes.Buffer
	term := NewTerminal(&out)
	err := term.Show(context.Background(), modes.Lorenz(),
		derive.RHS{"-sigma*psi_1_1"}, derive.RHS{"theta_0_2", "theta_1_1"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hk3_rhs")
	assert.False(t, lipgloss.HasDarkBackground(), "display mode must be released")
}

func TestConfirmModel(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want bool
	}{
		{"y", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}, true},
		{"Y", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Y")}, true},
		{"n", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, false},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, false},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, false},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := confirmModel{prompt: "Overwrite file"}.Update(tt.key)
			got := m.(confirmModel)
			assert.True(t, got.answered)
			assert.Equal(t, tt.want, got.confirmed)
			assert.NotNil(t, cmd)
		})
	}
}

func TestConfirmModel_IgnoresOtherKeys(t *testing.T) {
	m, cmd := confirmModel{prompt: "Overwrite file"}.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.False(t, m.(confirmModel).answered)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Overwrite file")
}

func TestTeaConfirmer(t *testing.T) {
	var in, out bytes.Buffer
	in.WriteString("y")
	c := &TeaConfirmer{In: &in, Out: &out}

	ok, err := c.Confirm(context.Background(), "Overwrite file")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewConfirmer_NonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer f.Close()

	c := NewConfirmer(f, &bytes.Buffer{})
	assert.IsType(t, &emit.LineConfirmer{}, c)
}
