// Package conserv defines the Conservation Checker capability. In the
// dissipation-free limit the truncated system must conserve energy, mean
// temperature and vorticity; the checker verifies this algebraically.
package conserv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"romgen/internal/derive"
	"romgen/internal/logging"
	"romgen/internal/modes"
	"romgen/internal/tactile"

	"go.uber.org/zap"
)

// ErrUnknownPolicy indicates an unrecognized violation policy name.
var ErrUnknownPolicy = errors.New("unknown conservation policy")

// Invariant names a conserved quantity.
type Invariant string

const (
	Energy          Invariant = "energy"
	MeanTemperature Invariant = "mean_temperature"
	Vorticity       Invariant = "vorticity"
)

// Violation is one invariant that did not cancel, with the residual the
// checker reported.
type Violation struct {
	Invariant Invariant `json:"invariant"`
	Residual  string    `json:"residual,omitempty"`
}

// ViolationError is returned by a Checker when any invariant fails.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = string(v.Invariant)
		if v.Residual != "" {
			parts[i] += " (residual " + v.Residual + ")"
		}
	}
	return "conservation violated: " + strings.Join(parts, ", ")
}

// Checker verifies the invariants of a dissipation-free system.
type Checker interface {
	Check(ctx context.Context, set modes.Set, psi, theta derive.RHS) error
}

// Policy decides what a violation does to the run.
type Policy string

const (
	// PolicyAbort fails the run on a violation.
	PolicyAbort Policy = "abort"
	// PolicyWarn records the violation and continues to emission.
	PolicyWarn Policy = "warn"
)

// ParsePolicy parses a policy name; empty means abort.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyWarn:
		return PolicyWarn, nil
	}
	return "", fmt.Errorf("%w: %q (valid: abort, warn)", ErrUnknownPolicy, s)
}

type request struct {
	PsiModes   []modes.Mode `json:"p_modes"`
	ThetaModes []modes.Mode `json:"t_modes"`
	PsiRHS     []string     `json:"psi_rhs"`
	ThetaRHS   []string     `json:"theta_rhs"`
}

type response struct {
	Violations []Violation `json:"violations"`
}

// Command checks invariants by running an external program that reads the
// dissipation-free system on stdin and writes {"violations": [...]}.
type Command struct {
	Exec *tactile.Executor
	Argv []string
}

// NewCommand creates a command-backed checker.
func NewCommand(exec *tactile.Executor, argv []string) *Command {
	return &Command{Exec: exec, Argv: argv}
}

func (c *Command) Check(ctx context.Context, set modes.Set, psi, theta derive.RHS) error {
	req := request{
		PsiModes:   set.Psi,
		ThetaModes: set.Theta,
		PsiRHS:     psi.Strings(),
		ThetaRHS:   theta.Strings(),
	}
	if req.PsiModes == nil {
		req.PsiModes = []modes.Mode{}
	}
	if req.ThetaModes == nil {
		req.ThetaModes = []modes.Mode{}
	}

	var resp response
	if err := c.Exec.RunJSON(ctx, c.Argv, req, &resp); err != nil {
		return err
	}

	log := logging.Get(logging.CategoryConserv)
	if len(resp.Violations) > 0 {
		return &ViolationError{Violations: resp.Violations}
	}
	log.Info("invariants conserved", zap.Int("num_modes", set.NumModes()))
	return nil
}
