package derive

import (
	"context"
	"time"

	"romgen/internal/logging"
	"romgen/internal/modes"
	"romgen/internal/tactile"

	"go.uber.org/zap"
)

// Request is the JSON document sent to an external deriver.
type Request struct {
	Family          string       `json:"family"`
	PsiModes        []modes.Mode `json:"p_modes"`
	ThetaModes      []modes.Mode `json:"t_modes"`
	Scale           ScaleVector  `json:"scale"`
	DissipationFree bool         `json:"dissipation_free"`
}

// NewRequest builds the request for one family.
func NewRequest(family modes.Family, set modes.Set, scale ScaleVector, dissipationFree bool) Request {
	return Request{
		Family:          family.String(),
		PsiModes:        nonNil(set.Psi),
		ThetaModes:      nonNil(set.Theta),
		Scale:           scale,
		DissipationFree: dissipationFree,
	}
}

func nonNil(ms []modes.Mode) []modes.Mode {
	if ms == nil {
		return []modes.Mode{}
	}
	return ms
}

type response struct {
	RHS []string `json:"rhs"`
}

// Command derives right-hand sides by running an external program, e.g. a
// sympy script, that reads a Request on stdin and writes {"rhs": [...]}.
type Command struct {
	Exec *tactile.Executor
	Argv []string
}

// NewCommand creates a command-backed deriver.
func NewCommand(exec *tactile.Executor, argv []string) *Command {
	return &Command{Exec: exec, Argv: argv}
}

func (c *Command) Streamfunction(ctx context.Context, set modes.Set, scale ScaleVector, dissipationFree bool) (RHS, error) {
	return c.derive(ctx, NewRequest(modes.Psi, set, scale, dissipationFree))
}

func (c *Command) Temperature(ctx context.Context, set modes.Set, scale ScaleVector, dissipationFree bool) (RHS, error) {
	return c.derive(ctx, NewRequest(modes.Theta, set, scale, dissipationFree))
}

func (c *Command) derive(ctx context.Context, req Request) (RHS, error) {
	start := time.Now()
	var resp response
	if err := c.Exec.RunJSON(ctx, c.Argv, req, &resp); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryDerive).Info("derived",
		zap.String("family", req.Family),
		zap.Bool("dissipation_free", req.DissipationFree),
		zap.Int("expressions", len(resp.RHS)),
		zap.Duration("elapsed", time.Since(start)))
	return FromStrings(resp.RHS), nil
}
