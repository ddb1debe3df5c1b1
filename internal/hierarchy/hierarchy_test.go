package hierarchy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"romgen/internal/modes"
	"romgen/internal/tactile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_Lorenz(t *testing.T) {
	set, err := Builtin().Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, modes.Lorenz(), set)
	assert.Equal(t, 3, set.NumModes())
}

func TestTable_UnknownModel(t *testing.T) {
	_, err := Builtin().Generate(context.Background(), 7)
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hierarchy.yaml")
	content := `models:
  2:
    p_modes: [[1, 1], [1, 3]]
    t_modes: [[1, 1], [0, 2], [1, 3], [0, 4]]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, table.Numbers())

	set, err := table.Generate(context.Background(), 2)
	require.NoError(t, err)
	// File order is authoritative and kept as written.
	assert.Equal(t, []modes.Mode{{M: 1, N: 1}, {M: 0, N: 2}, {M: 1, N: 3}, {M: 0, N: 4}}, set.Theta)
}

func TestLoadTable_RejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"float wavenumber": "models:\n  2:\n    p_modes: [[1.5, 1]]\n",
		"duplicate mode":   "models:\n  2:\n    p_modes: [[1, 1], [1, 1]]\n",
		"model zero":       "models:\n  0:\n    p_modes: [[1, 1]]\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hierarchy.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := LoadTable(path)
			assert.Error(t, err)
		})
	}
}

func TestCommand_Generate(t *testing.T) {
	script := filepath.Join(t.TempDir(), "hk.sh")
	body := "#!/bin/sh\ncat >/dev/null\necho '{\"p_modes\": [[1, 1]], \"t_modes\": [[0, 2], [1, 1]]}'\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	gen := NewCommand(tactile.NewExecutor(nil, 0), []string{script})
	set, err := gen.Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, modes.Lorenz(), set)
}
