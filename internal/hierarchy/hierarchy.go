// Package hierarchy provides Hierarchy Generators: sources of canonical,
// increasingly large mode sets indexed by model number. The returned
// ordering is authoritative; the registry never re-sorts it.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"romgen/internal/modes"
	"romgen/internal/tactile"

	"gopkg.in/yaml.v3"
)

// ErrUnknownModel indicates a model number the generator does not define.
var ErrUnknownModel = errors.New("unknown hierarchy model")

// Table is a fixed map of model numbers to mode sets.
type Table struct {
	Models map[int]modes.Set
}

// Builtin returns the table of models romgen ships with: model 1 is the
// Lorenz system.
func Builtin() *Table {
	return &Table{Models: map[int]modes.Set{
		1: modes.Lorenz(),
	}}
}

// file is the on-disk layout of a hierarchy table.
//
//	models:
//	  1:
//	    p_modes: [[1, 1]]
//	    t_modes: [[0, 2], [1, 1]]
type file struct {
	Models map[int]modes.Set `yaml:"models"`
}

// LoadTable reads a YAML hierarchy table. Entries override the builtin
// models with the same number.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse hierarchy file %s: %w", path, err)
	}

	t := Builtin()
	for n, set := range f.Models {
		if n < 1 {
			return nil, fmt.Errorf("hierarchy file %s: model %d: %w", path, n, modes.ErrInvalidModel)
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("hierarchy file %s: model %d: %w", path, n, err)
		}
		t.Models[n] = set
	}
	return t, nil
}

// Generate returns the stored set for model.
func (t *Table) Generate(ctx context.Context, model int) (modes.Set, error) {
	set, ok := t.Models[model]
	if !ok {
		return modes.Set{}, fmt.Errorf("%w: %d (defined: %v)", ErrUnknownModel, model, t.Numbers())
	}
	return set, nil
}

// Numbers lists the defined model numbers in ascending order.
func (t *Table) Numbers() []int {
	nums := make([]int, 0, len(t.Models))
	for n := range t.Models {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

type request struct {
	Model int `json:"model"`
}

// Command generates mode sets by running an external program that reads
// {"model": n} on stdin and writes {"p_modes": [...], "t_modes": [...]}.
type Command struct {
	Exec *tactile.Executor
	Argv []string
}

// NewCommand creates a command-backed generator.
func NewCommand(exec *tactile.Executor, argv []string) *Command {
	return &Command{Exec: exec, Argv: argv}
}

func (c *Command) Generate(ctx context.Context, model int) (modes.Set, error) {
	var set modes.Set
	if err := c.Exec.RunJSON(ctx, c.Argv, request{Model: model}, &set); err != nil {
		return modes.Set{}, err
	}
	return set, nil
}
