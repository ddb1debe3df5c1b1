package config

import (
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidModelIndex indicates a hierarchy index that is not an integer.
var ErrInvalidModelIndex = errors.New("hierarchy index must be an integer")

// ModelIndex is a hierarchy model number. Unlike a plain int it refuses
// floats such as 1.5 instead of truncating them, both in YAML and as a flag
// value.
type ModelIndex int

// UnmarshalYAML accepts only !!int scalars.
func (m *ModelIndex) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!int" {
		return fmt.Errorf("%w: %q (line %d)", ErrInvalidModelIndex, node.Value, node.Line)
	}
	n, err := strconv.ParseInt(node.Value, 0, 0)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidModelIndex, node.Value, err)
	}
	*m = ModelIndex(n)
	return nil
}

// Set implements pflag.Value.
func (m *ModelIndex) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidModelIndex, s)
	}
	*m = ModelIndex(n)
	return nil
}

func (m *ModelIndex) String() string {
	return strconv.Itoa(int(*m))
}

// Type implements pflag.Value.
func (m *ModelIndex) Type() string {
	return "int"
}
