// Package derive defines the RHS Deriver capability: the external symbolic
// engine that Galerkin-projects the Boussinesq equations onto a mode set and
// returns one time-derivative expression per mode.
package derive

import (
	"context"
	"errors"
	"fmt"

	"romgen/internal/modes"
)

// ErrLengthMismatch indicates a deriver returned the wrong number of
// expressions for a family.
var ErrLengthMismatch = errors.New("deriver returned wrong number of expressions")

// Expression is a sympy-printed (Python syntax) algebraic expression.
type Expression string

// RHS holds one expression per mode of a family, in flat-index order.
type RHS []Expression

// Strings returns the expressions as plain strings.
func (r RHS) Strings() []string {
	out := make([]string, len(r))
	for i, e := range r {
		out[i] = string(e)
	}
	return out
}

// FromStrings converts plain strings into an RHS.
func FromStrings(ss []string) RHS {
	out := make(RHS, len(ss))
	for i, s := range ss {
		out[i] = Expression(s)
	}
	return out
}

// ScaleVector holds one scale factor per mode: either the symbols a(1)..a(n)
// or the constant 1.
type ScaleVector []string

// UnitScale returns n unit factors.
func UnitScale(n int) ScaleVector {
	v := make(ScaleVector, n)
	for i := range v {
		v[i] = "1"
	}
	return v
}

// SymbolicScale returns the symbols a(1)..a(n).
func SymbolicScale(n int) ScaleVector {
	v := make(ScaleVector, n)
	for i := range v {
		v[i] = fmt.Sprintf("a(%d)", i+1)
	}
	return v
}

// IsUnit reports whether every factor is the constant 1.
func (v ScaleVector) IsUnit() bool {
	for _, s := range v {
		if s != "1" {
			return false
		}
	}
	return true
}

// Deriver produces the right-hand sides of the truncated system.
// dissipationFree=true removes every diffusive term and is only ever called
// with a unit scale vector.
type Deriver interface {
	Streamfunction(ctx context.Context, set modes.Set, scale ScaleVector, dissipationFree bool) (RHS, error)
	Temperature(ctx context.Context, set modes.Set, scale ScaleVector, dissipationFree bool) (RHS, error)
}

// Derive dispatches to the family's entry point and checks the result has
// exactly one expression per mode.
func Derive(ctx context.Context, d Deriver, family modes.Family, set modes.Set, scale ScaleVector, dissipationFree bool) (RHS, error) {
	var (
		rhs RHS
		err error
	)
	switch family {
	case modes.Psi:
		rhs, err = d.Streamfunction(ctx, set, scale, dissipationFree)
	case modes.Theta:
		rhs, err = d.Temperature(ctx, set, scale, dissipationFree)
	default:
		return nil, fmt.Errorf("unknown family %s", family)
	}
	if err != nil {
		return nil, err
	}
	if want := len(set.Modes(family)); len(rhs) != want {
		return nil, fmt.Errorf("%w: %s: got %d, want %d", ErrLengthMismatch, family, len(rhs), want)
	}
	return rhs, nil
}
