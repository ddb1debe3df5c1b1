// Package derivetest provides a deterministic Deriver for tests.
package derivetest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"romgen/internal/derive"
	"romgen/internal/modes"
)

// Call records one invocation of the fake.
type Call struct {
	Family          modes.Family
	Set             modes.Set
	Scale           derive.ScaleVector
	DissipationFree bool
}

// Fake returns one synthetic expression per mode and records every call.
// For the mode at flat index i with symbol s it returns
// "<scale[i-1]>*s**2 - sigma*s", or just "-s**3" when dissipation-free.
type Fake struct {
	mu    sync.Mutex
	calls []Call

	// Err, when set, is returned by every call.
	Err error
	// Short drops the last expression of every result.
	Short bool
}

func (f *Fake) Streamfunction(ctx context.Context, set modes.Set, scale derive.ScaleVector, dissipationFree bool) (derive.RHS, error) {
	return f.derive(modes.Psi, set, scale, dissipationFree)
}

func (f *Fake) Temperature(ctx context.Context, set modes.Set, scale derive.ScaleVector, dissipationFree bool) (derive.RHS, error) {
	return f.derive(modes.Theta, set, scale, dissipationFree)
}

func (f *Fake) derive(family modes.Family, set modes.Set, scale derive.ScaleVector, dissipationFree bool) (derive.RHS, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{
		Family:          family,
		Set:             set,
		Scale:           slices.Clone(scale),
		DissipationFree: dissipationFree,
	})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}

	var rhs derive.RHS
	for pos, m := range set.Modes(family) {
		sym := modes.Symbol(family, m)
		idx := set.Index(family, pos)
		if dissipationFree {
			rhs = append(rhs, derive.Expression(fmt.Sprintf("-%s**3", sym)))
			continue
		}
		factor := "1"
		if idx-1 < len(scale) {
			factor = scale[idx-1]
		}
		rhs = append(rhs, derive.Expression(fmt.Sprintf("%s*%s**2 - sigma*%s", factor, sym, sym)))
	}
	if f.Short && len(rhs) > 0 {
		rhs = rhs[:len(rhs)-1]
	}
	return rhs, nil
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount returns the number of recorded calls.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
