package modes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"romgen/internal/logging"

	"go.uber.org/zap"
)

var (
	// ErrInvalidModel indicates a hierarchy model number below 1.
	ErrInvalidModel = errors.New("model number must be a positive integer")

	// ErrUnknownSelection indicates an unrecognized mode selection name.
	ErrUnknownSelection = errors.New("unknown mode selection")

	// ErrNoGenerator indicates hierarchy selection without a generator.
	ErrNoGenerator = errors.New("no hierarchy generator configured")
)

// Selection chooses how the registry obtains modes.
type Selection string

const (
	SelectHierarchy Selection = "hierarchy"
	SelectExplicit  Selection = "explicit"
)

// ParseSelection accepts the canonical names plus the short aliases hk and
// input.
func ParseSelection(s string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hierarchy", "hk":
		return SelectHierarchy, nil
	case "explicit", "input":
		return SelectExplicit, nil
	}
	return "", fmt.Errorf("%w: %q (valid: hierarchy, explicit)", ErrUnknownSelection, s)
}

// Generator produces the canonical mode set of a hierarchy model. Its
// ordering is authoritative.
type Generator interface {
	Generate(ctx context.Context, model int) (Set, error)
}

// Registry resolves a canonical Set from either a hierarchy model or an
// explicit pair of mode lists.
type Registry struct {
	Hierarchy Generator
}

// NewRegistry creates a registry backed by the given generator.
func NewRegistry(gen Generator) *Registry {
	return &Registry{Hierarchy: gen}
}

// Resolve returns the canonical mode set for a run. Explicit lists are
// sorted on a copy; hierarchy output is used as returned.
func (r *Registry) Resolve(ctx context.Context, sel Selection, model int, explicit Set) (Set, error) {
	log := logging.Get(logging.CategoryModes)

	switch sel {
	case SelectHierarchy:
		if model < 1 {
			return Set{}, fmt.Errorf("%w: got %d", ErrInvalidModel, model)
		}
		if r.Hierarchy == nil {
			return Set{}, ErrNoGenerator
		}
		set, err := r.Hierarchy.Generate(ctx, model)
		if err != nil {
			return Set{}, fmt.Errorf("hierarchy model %d: %w", model, err)
		}
		if err := set.Validate(); err != nil {
			return Set{}, fmt.Errorf("hierarchy model %d: %w", model, err)
		}
		log.Debug("resolved hierarchy modes",
			zap.Int("model", model),
			zap.Int("psi", len(set.Psi)),
			zap.Int("theta", len(set.Theta)))
		return set, nil

	case SelectExplicit:
		set := explicit.Canonical()
		if err := set.Validate(); err != nil {
			return Set{}, err
		}
		log.Debug("resolved explicit modes",
			zap.Int("psi", len(set.Psi)),
			zap.Int("theta", len(set.Theta)))
		return set, nil
	}

	return Set{}, fmt.Errorf("%w: %q", ErrUnknownSelection, sel)
}

// ParseMode parses "m,n" (parentheses optional), as used by the --psi and
// --theta flags.
func ParseMode(s string) (Mode, error) {
	trimmed := strings.Trim(strings.TrimSpace(s), "()")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 2 {
		return Mode{}, fmt.Errorf("mode %q: expected m,n", s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Mode{}, fmt.Errorf("mode %q: horizontal wavenumber: %w", s, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Mode{}, fmt.Errorf("mode %q: vertical wavenumber: %w", s, err)
	}
	return Mode{M: m, N: n}, nil
}

// ParseModes parses a list of "m,n" strings.
func ParseModes(ss []string) ([]Mode, error) {
	out := make([]Mode, 0, len(ss))
	for _, s := range ss {
		m, err := ParseMode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
