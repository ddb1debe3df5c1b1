package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"romgen/internal/config"
	"romgen/internal/emit"
	"romgen/internal/pipeline"
	"romgen/internal/watch"

	"github.com/spf13/cobra"
)

// watchCmd regenerates whenever the config file changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate the artifact whenever the config file changes",
	Long: `Runs once, then watches the config file and reruns the pipeline after
every saved change. Watch runs replace the artifact without asking and
never open the terminal display. Every run reloads the whole config,
deriver.cache_path included. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Failed runs are reported and the watch goes on.
	out := cmd.OutOrStdout()
	regenerate := func(ctx context.Context) error {
		loaded, err := config.Load(configPath)
		if err == nil {
			err = loaded.Validate()
		}
		if err != nil {
			fmt.Fprintf(out, "config: %v\n", err)
			return nil
		}
		res, err := watchRun(ctx, loaded)
		if err != nil {
			fmt.Fprintf(out, "run failed: %v\n", err)
			return nil
		}
		printResult(out, res)
		return nil
	}

	_ = regenerate(ctx)

	w, err := watch.New(configPath, regenerate)
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", configPath)

	<-ctx.Done()
	return nil
}

// watchRun performs one run with a freshly loaded config. The store is
// opened per run so a changed cache path takes effect.
func watchRun(ctx context.Context, loaded *config.Config) (*pipeline.Result, error) {
	opts, err := pipeline.OptionsFromConfig(loaded.Run)
	if err != nil {
		return nil, err
	}
	opts.Overwrite = emit.OverwriteAlways
	opts.DisplayInteractive = false
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(loaded)
	if err != nil {
		return nil, err
	}
	if st != nil {
		defer st.Close()
	}

	runner, err := buildRunner(loaded, st, nil, false)
	if err != nil {
		return nil, err
	}
	res, err := runner.Run(ctx, opts)
	recordRun(st, opts, res, err)
	return res, err
}
