// Package modes owns the spectral mode model and the flat 1-based index
// assignment shared by every later stage of a run.
//
// Streamfunction modes always precede temperature modes in the state vector:
// psi position p maps to x(p+1), theta position q maps to x(len(Psi)+q+1).
package modes

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrEmptySet indicates a mode set with no modes in either family.
	ErrEmptySet = errors.New("mode set is empty")

	// ErrNegativeWavenumber indicates a mode with a negative wavenumber.
	ErrNegativeWavenumber = errors.New("wavenumbers must be non-negative")

	// ErrDuplicateMode indicates the same mode listed twice in one family.
	ErrDuplicateMode = errors.New("duplicate mode in family")
)

// Mode is one spectral basis function, identified by its horizontal (M) and
// vertical (N) wavenumbers.
type Mode struct {
	M int
	N int
}

// Compare orders modes by horizontal then vertical wavenumber.
func Compare(a, b Mode) int {
	if c := cmp.Compare(a.M, b.M); c != 0 {
		return c
	}
	return cmp.Compare(a.N, b.N)
}

func (m Mode) String() string {
	return fmt.Sprintf("(%d,%d)", m.M, m.N)
}

// Family distinguishes streamfunction modes from temperature modes.
type Family int

const (
	Psi Family = iota
	Theta
)

func (f Family) String() string {
	switch f {
	case Psi:
		return "psi"
	case Theta:
		return "theta"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Label is the one-letter prefix used in the artifact header.
func (f Family) Label() string {
	if f == Theta {
		return "t"
	}
	return "p"
}

// Symbol is the symbolic name of a mode as printed by the RHS deriver,
// e.g. psi_1_1 or theta_0_2.
func Symbol(f Family, m Mode) string {
	return fmt.Sprintf("%s_%d_%d", f, m.M, m.N)
}

// Set is an ordered pair of mode sequences. The order of each sequence is
// the index order; Set never reorders its contents.
type Set struct {
	Psi   []Mode `json:"p_modes" yaml:"p_modes"`
	Theta []Mode `json:"t_modes" yaml:"t_modes"`
}

// NumModes is the length of the flat state vector.
func (s Set) NumModes() int {
	return len(s.Psi) + len(s.Theta)
}

// Modes returns the sequence for one family.
func (s Set) Modes(f Family) []Mode {
	if f == Theta {
		return s.Theta
	}
	return s.Psi
}

// Index returns the 1-based flat index of the mode at position pos of
// family f.
func (s Set) Index(f Family, pos int) int {
	if f == Theta {
		return len(s.Psi) + pos + 1
	}
	return pos + 1
}

// Entry is one mode with its flat index.
type Entry struct {
	Family Family
	Mode   Mode
	Index  int
}

// Symbol returns the deriver-side symbol for the entry.
func (e Entry) Symbol() string {
	return Symbol(e.Family, e.Mode)
}

// Label returns the header name, e.g. p1,1 or t0,2.
func (e Entry) Label() string {
	return fmt.Sprintf("%s%d,%d", e.Family.Label(), e.Mode.M, e.Mode.N)
}

// Entries lists every mode in flat-index order.
func (s Set) Entries() []Entry {
	entries := make([]Entry, 0, s.NumModes())
	for i, m := range s.Psi {
		entries = append(entries, Entry{Family: Psi, Mode: m, Index: s.Index(Psi, i)})
	}
	for i, m := range s.Theta {
		entries = append(entries, Entry{Family: Theta, Mode: m, Index: s.Index(Theta, i)})
	}
	return entries
}

// SymbolIndex maps every mode symbol to its flat index.
func (s Set) SymbolIndex() map[string]int {
	idx := make(map[string]int, s.NumModes())
	for _, e := range s.Entries() {
		idx[e.Symbol()] = e.Index
	}
	return idx
}

// Canonical returns a copy of s with both families sorted by Compare.
func (s Set) Canonical() Set {
	out := Set{
		Psi:   slices.Clone(s.Psi),
		Theta: slices.Clone(s.Theta),
	}
	slices.SortFunc(out.Psi, Compare)
	slices.SortFunc(out.Theta, Compare)
	return out
}

// Validate checks the structural invariants of a set: at least one mode,
// non-negative wavenumbers, and no duplicates within a family.
func (s Set) Validate() error {
	if s.NumModes() == 0 {
		return ErrEmptySet
	}
	for _, f := range []Family{Psi, Theta} {
		seen := make(map[Mode]bool, len(s.Modes(f)))
		for _, m := range s.Modes(f) {
			if m.M < 0 || m.N < 0 {
				return fmt.Errorf("%s mode %s: %w", f, m, ErrNegativeWavenumber)
			}
			if seen[m] {
				return fmt.Errorf("%s mode %s: %w", f, m, ErrDuplicateMode)
			}
			seen[m] = true
		}
	}
	return nil
}

// Lorenz is the classical three-mode model, the default explicit set.
func Lorenz() Set {
	return Set{
		Psi:   []Mode{{M: 1, N: 1}},
		Theta: []Mode{{M: 0, N: 2}, {M: 1, N: 1}},
	}
}
