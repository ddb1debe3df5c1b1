// Package pipeline is the orchestrator: it drives one generation run through
// a fixed sequence of stages, from configuration checks to artifact
// emission.
//
//	START -> VALIDATE_CONFIG -> RESOLVE_MODES -> DERIVE_RHS ->
//	[CHECK_CONSERVATION] -> [DISPLAY] -> [EMIT] -> DONE
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"romgen/internal/conserv"
	"romgen/internal/derive"
	"romgen/internal/display"
	"romgen/internal/emit"
	"romgen/internal/logging"
	"romgen/internal/modes"
	"romgen/internal/translate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage is one state of a run.
type Stage int

const (
	StageStart Stage = iota
	StageValidateConfig
	StageResolveModes
	StageDeriveRHS
	StageCheckConservation
	StageDisplay
	StageEmit
	StageDone
)

var stageNames = [...]string{
	StageStart:             "START",
	StageValidateConfig:    "VALIDATE_CONFIG",
	StageResolveModes:      "RESOLVE_MODES",
	StageDeriveRHS:         "DERIVE_RHS",
	StageCheckConservation: "CHECK_CONSERVATION",
	StageDisplay:           "DISPLAY",
	StageEmit:              "EMIT",
	StageDone:              "DONE",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Result describes a finished (or aborted) run.
type Result struct {
	RunID  string
	Stages []Stage
	Set    modes.Set

	// Psi and Theta are the emitted system's right-hand sides.
	Psi   derive.RHS
	Theta derive.RHS

	// Emitted is true once the EMIT stage produced an outcome.
	Emitted      bool
	ArtifactPath string
	Outcome      emit.Outcome

	// Violation holds a conservation violation tolerated by the warn policy.
	Violation *conserv.ViolationError

	Elapsed time.Duration
}

// Last returns the final stage the run reached.
func (r *Result) Last() Stage {
	if len(r.Stages) == 0 {
		return StageStart
	}
	return r.Stages[len(r.Stages)-1]
}

// Declined reports whether the run stopped at an overwrite the user refused.
func (r *Result) Declined() bool {
	return r.Emitted && r.Outcome == emit.Declined
}

// Runner wires the collaborators of a run. It holds no per-run state, so a
// Runner may serve several runs, but a single run is synchronous.
type Runner struct {
	Registry *modes.Registry
	Deriver  derive.Deriver
	Checker  conserv.Checker
	Display  display.Displayer
	Confirm  emit.Confirmer

	// NewTranslator builds the translator for one run; nil uses
	// translate.New.
	NewTranslator func() *translate.Translator
}

// Run executes one generation run. A declined overwrite is not an error:
// the result reports it with Outcome == emit.Declined.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()[:8]}
	log := logging.Get(logging.CategoryPipeline).With(zap.String("run_id", res.RunID))
	defer func() { res.Elapsed = time.Since(start) }()

	enter := func(s Stage) {
		res.Stages = append(res.Stages, s)
		log.Debug("stage", zap.Stringer("stage", s))
	}

	enter(StageStart)

	enter(StageValidateConfig)
	if err := r.validate(opts); err != nil {
		log.Warn("invalid configuration", zap.Error(err))
		return res, err
	}
	policy, _ := conserv.ParsePolicy(string(opts.ConservationPolicy))

	enter(StageResolveModes)
	registry := r.Registry
	if registry == nil {
		registry = modes.NewRegistry(nil)
	}
	set, err := registry.Resolve(ctx, opts.Selection, opts.HierarchyIndex, opts.Explicit)
	if err != nil {
		return res, &ModeError{Selection: opts.Selection, Model: opts.HierarchyIndex, Err: err}
	}
	res.Set = set
	log.Info("modes resolved",
		zap.Int("num_modes", set.NumModes()),
		zap.String("selection", string(opts.Selection)))

	enter(StageDeriveRHS)
	n := set.NumModes()
	scale := derive.UnitScale(n)
	if opts.ApplyScaleFactors {
		scale = derive.SymbolicScale(n)
	}
	res.Psi, res.Theta, err = r.derivePair(ctx, set, scale, false)
	if err != nil {
		return res, err
	}

	if opts.CheckConservation {
		// The checked system is derived separately, unscaled and without
		// diffusion; it is never emitted.
		freePsi, freeTheta, err := r.derivePair(ctx, set, derive.UnitScale(n), true)
		if err != nil {
			return res, err
		}

		enter(StageCheckConservation)
		err = r.Checker.Check(ctx, set, freePsi, freeTheta)
		var violation *conserv.ViolationError
		switch {
		case err == nil:
		case errors.As(err, &violation) && policy == conserv.PolicyWarn:
			res.Violation = violation
			log.Warn("conservation violated, continuing", zap.Error(violation))
		default:
			log.Error("conservation check failed", zap.Error(err))
			return res, &ConservationError{Err: err}
		}
	}

	if opts.DisplayInteractive {
		enter(StageDisplay)
		if err := r.Display.Show(ctx, set, res.Psi, res.Theta); err != nil {
			return res, fmt.Errorf("display: %w", err)
		}
	}

	if opts.EmitArtifact {
		enter(StageEmit)
		if err := r.emit(ctx, opts, res); err != nil {
			return res, err
		}
		if res.Declined() {
			log.Info("overwrite declined, run aborted", zap.String("path", res.ArtifactPath))
			return res, nil
		}
	}

	enter(StageDone)
	log.Info("run complete",
		zap.Int("num_modes", n),
		zap.String("artifact", res.ArtifactPath),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (r *Runner) validate(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if r.Deriver == nil {
		return &ConfigError{Option: "deriver", Err: ErrNoDeriver}
	}
	if opts.CheckConservation && r.Checker == nil {
		return &ConfigError{Option: "check_conservation", Value: true, Err: ErrNoChecker}
	}
	if opts.DisplayInteractive && r.Display == nil {
		return &ConfigError{Option: "display_interactive", Value: true, Err: ErrNoDisplay}
	}
	return nil
}

func (r *Runner) derivePair(ctx context.Context, set modes.Set, scale derive.ScaleVector, dissipationFree bool) (psi, theta derive.RHS, err error) {
	psi, err = derive.Derive(ctx, r.Deriver, modes.Psi, set, scale, dissipationFree)
	if err != nil {
		return nil, nil, &DerivationError{Family: modes.Psi, DissipationFree: dissipationFree, Err: err}
	}
	theta, err = derive.Derive(ctx, r.Deriver, modes.Theta, set, scale, dissipationFree)
	if err != nil {
		return nil, nil, &DerivationError{Family: modes.Theta, DissipationFree: dissipationFree, Err: err}
	}
	return psi, theta, nil
}

func (r *Runner) emit(ctx context.Context, opts Options, res *Result) error {
	newTranslator := r.NewTranslator
	if newTranslator == nil {
		newTranslator = translate.New
	}
	tr := newTranslator()
	defer tr.Close()

	psiBlock, err := tr.Translate(ctx, res.Psi, res.Set)
	if err != nil {
		return &TranslationError{Family: modes.Psi, Err: err}
	}
	thetaBlock, err := tr.Translate(ctx, res.Theta, res.Set)
	if err != nil {
		return &TranslationError{Family: modes.Theta, Err: err}
	}

	emitter := emit.New(opts.Overwrite, r.Confirm)
	path, outcome, err := emitter.Emit(ctx, opts.OutputDirectory, res.Set, psiBlock, thetaBlock)
	res.ArtifactPath = path
	if err != nil {
		return &EmitError{Path: path, Err: err}
	}
	res.Emitted = true
	res.Outcome = outcome
	return nil
}
