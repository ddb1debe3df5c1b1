package conserv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"romgen/internal/derive"
	"romgen/internal/modes"
	"romgen/internal/tactile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyAbort, false},
		{"abort", PolicyAbort, false},
		{"WARN", PolicyWarn, false},
		{"ignore", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownPolicy, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestViolationError_Message(t *testing.T) {
	err := &ViolationError{Violations: []Violation{
		{Invariant: Energy, Residual: "psi_1_1*theta_1_1"},
		{Invariant: Vorticity},
	}}
	assert.Equal(t, "conservation violated: energy (residual psi_1_1*theta_1_1), vorticity", err.Error())
}

func writeScript(t *testing.T, out string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checker.sh")
	body := "#!/bin/sh\ncat >/dev/null\necho '" + out + "'\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func TestCommand_Conserved(t *testing.T) {
	c := NewCommand(tactile.NewExecutor(nil, 0), []string{writeScript(t, `{"violations": []}`)})
	err := c.Check(context.Background(), modes.Lorenz(), derive.RHS{"0"}, derive.RHS{"0", "0"})
	assert.NoError(t, err)
}

func TestCommand_Violated(t *testing.T) {
	c := NewCommand(tactile.NewExecutor(nil, 0), []string{writeScript(t, `{"violations": [{"invariant": "energy", "residual": "2*psi_1_1"}]}`)})
	err := c.Check(context.Background(), modes.Lorenz(), derive.RHS{"0"}, derive.RHS{"0", "0"})

	var verr *ViolationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []Violation{{Invariant: Energy, Residual: "2*psi_1_1"}}, verr.Violations)
}
