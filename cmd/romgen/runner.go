package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"romgen/internal/config"
	"romgen/internal/conserv"
	"romgen/internal/derive"
	"romgen/internal/display"
	"romgen/internal/hierarchy"
	"romgen/internal/modes"
	"romgen/internal/pipeline"
	"romgen/internal/store"
	"romgen/internal/tactile"

	"go.uber.org/zap"
)

var errNoDeriverCommand = errors.New("deriver.command is not set (config file or ROMGEN_DERIVER)")

// newDeriver builds the RHS deriver from the config. Tests replace it.
var newDeriver = func(cfg *config.Config) (derive.Deriver, error) {
	if len(cfg.Deriver.Command) == 0 {
		return nil, &pipeline.ConfigError{Option: "deriver.command", Err: errNoDeriverCommand}
	}
	exec := newExecutor(cfg, cfg.GetDeriverTimeout())
	return derive.NewCommand(exec, cfg.Deriver.Command), nil
}

func newExecutor(cfg *config.Config, timeout time.Duration) *tactile.Executor {
	return tactile.NewExecutor(cfg.Execution.AllowedBinaries, timeout)
}

// newGenerator picks the hierarchy source: an external command, a table
// file, or the built-in models.
func newGenerator(cfg *config.Config) (modes.Generator, error) {
	switch {
	case len(cfg.Hierarchy.Command) > 0:
		return hierarchy.NewCommand(newExecutor(cfg, cfg.GetExecutionTimeout()), cfg.Hierarchy.Command), nil
	case cfg.Hierarchy.File != "":
		table, err := hierarchy.LoadTable(cfg.Hierarchy.File)
		if err != nil {
			return nil, &pipeline.ConfigError{Option: "hierarchy.file", Value: cfg.Hierarchy.File, Err: err}
		}
		return table, nil
	default:
		return hierarchy.Builtin(), nil
	}
}

// openStore opens the derivation cache. An empty cache path disables it and
// returns a nil store.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Deriver.CachePath == "" {
		return nil, nil
	}
	st, err := store.Open(cfg.Deriver.CachePath)
	if err != nil {
		return nil, &pipeline.ConfigError{Option: "deriver.cache_path", Value: cfg.Deriver.CachePath, Err: err}
	}
	return st, nil
}

// buildRunner wires the collaborators of a run. Interactive runners get a
// terminal display and an overwrite prompt on stdin.
func buildRunner(cfg *config.Config, st *store.Store, out io.Writer, interactive bool) (*pipeline.Runner, error) {
	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	deriver, err := newDeriver(cfg)
	if err != nil {
		return nil, err
	}
	if st != nil {
		deriver = derive.NewCached(deriver, st, derive.Fingerprint(cfg.Deriver.Command))
	}

	runner := &pipeline.Runner{
		Registry: modes.NewRegistry(gen),
		Deriver:  deriver,
	}
	if len(cfg.Checker.Command) > 0 {
		runner.Checker = conserv.NewCommand(newExecutor(cfg, cfg.GetExecutionTimeout()), cfg.Checker.Command)
	}
	if interactive {
		runner.Display = display.NewTerminal(out)
		runner.Confirm = display.NewConfirmer(os.Stdin, out)
	}
	return runner, nil
}

// recordRun appends a finished run to the history. Failures are logged and
// otherwise ignored.
func recordRun(st *store.Store, opts pipeline.Options, res *pipeline.Result, runErr error) {
	if st == nil || res == nil {
		return
	}
	rec := store.RunRecord{
		RunID:     res.RunID,
		StartedAt: time.Now().Add(-res.Elapsed),
		Selection: string(opts.Selection),
		Model:     opts.HierarchyIndex,
		NumModes:  res.Set.NumModes(),
		Artifact:  res.ArtifactPath,
		Elapsed:   res.Elapsed,
	}
	switch {
	case runErr != nil:
		rec.Outcome = "failed"
		rec.Error = runErr.Error()
	case res.Emitted:
		rec.Outcome = res.Outcome.String()
	default:
		rec.Outcome = res.Last().String()
	}
	if res.Violation != nil {
		rec.Violation = res.Violation.Error()
	}

	// The run context may already be cancelled.
	if err := st.RecordRun(context.Background(), rec); err != nil {
		logger.Warn("failed to record run", zap.String("run_id", res.RunID), zap.Error(err))
	}
}
