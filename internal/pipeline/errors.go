package pipeline

import (
	"errors"
	"fmt"

	"romgen/internal/modes"
)

var (
	// ErrNoDeriver indicates a runner without an RHS deriver.
	ErrNoDeriver = errors.New("no RHS deriver configured")

	// ErrNoChecker indicates conservation checking without a checker.
	ErrNoChecker = errors.New("no conservation checker configured")

	// ErrNoDisplay indicates interactive display without a displayer.
	ErrNoDisplay = errors.New("no display configured")

	// ErrMissingOutputDir indicates emission without an output directory.
	ErrMissingOutputDir = errors.New("output directory is required when emitting")
)

// ConfigError reports an invalid option. It is raised before any side
// effect of the run.
type ConfigError struct {
	Option string
	Value  interface{}
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %v", e.Option, e.Err)
	}
	return fmt.Sprintf("invalid %s %v: %v", e.Option, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ModeError reports a failure to resolve the mode set.
type ModeError struct {
	Selection modes.Selection
	Model     int
	Err       error
}

func (e *ModeError) Error() string {
	if e.Selection == modes.SelectHierarchy {
		return fmt.Sprintf("resolve modes (hierarchy model %d): %v", e.Model, e.Err)
	}
	return fmt.Sprintf("resolve modes (%s): %v", e.Selection, e.Err)
}

func (e *ModeError) Unwrap() error { return e.Err }

// DerivationError reports a failed RHS derivation.
type DerivationError struct {
	Family          modes.Family
	DissipationFree bool
	Err             error
}

func (e *DerivationError) Error() string {
	kind := "full"
	if e.DissipationFree {
		kind = "dissipation-free"
	}
	return fmt.Sprintf("derive %s rhs (%s): %v", e.Family, kind, e.Err)
}

func (e *DerivationError) Unwrap() error { return e.Err }

// ConservationError reports a failed conservation check: either a violation
// under the abort policy or a checker that could not run.
type ConservationError struct {
	Err error
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("conservation check: %v", e.Err)
}

func (e *ConservationError) Unwrap() error { return e.Err }

// TranslationError reports an expression that could not be translated.
type TranslationError struct {
	Family modes.Family
	Err    error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate %s rhs: %v", e.Family, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// EmitError reports a failure to write the artifact.
type EmitError struct {
	Path string
	Err  error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("emit %s: %v", e.Path, e.Err)
}

func (e *EmitError) Unwrap() error { return e.Err }

// ExitCode maps a run error to a process exit status: 0 for success, 2 for
// configuration errors, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}
