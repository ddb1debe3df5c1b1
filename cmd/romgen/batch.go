package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"romgen/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	batchFrom      int
	batchTo        int
	batchJobs      int
	batchOverwrite string
)

// batchCmd generates a range of hierarchy models
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate a range of hierarchy models concurrently",
	Long: `Runs the pipeline for every hierarchy model from --from to --to.
Batch runs never display and never prompt; an "ask" overwrite policy
behaves like "never". A failing model does not stop the others.

Example:
  romgen batch --from 1 --to 10 --jobs 4`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVar(&batchFrom, "from", 1, "First model number")
	batchCmd.Flags().IntVar(&batchTo, "to", 1, "Last model number")
	batchCmd.Flags().IntVarP(&batchJobs, "jobs", "j", runtime.NumCPU(), "Maximum concurrent runs")
	batchCmd.Flags().StringVar(&batchOverwrite, "overwrite", "", "Existing artifact policy: always or never")
}

func runBatch(cmd *cobra.Command, args []string) error {
	models, err := pipeline.ModelRange(batchFrom, batchTo)
	if err != nil {
		return err
	}
	rc := cfg.Run
	if cmd.Flags().Changed("overwrite") {
		rc.Overwrite = batchOverwrite
	}
	base, err := pipeline.OptionsFromConfig(rc)
	if err != nil {
		return err
	}
	// Reject bad options before the store creates any file.
	check := base
	check.HierarchyIndex = models[0]
	if err := check.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	runner, err := buildRunner(cfg, st, cmd.OutOrStdout(), false)
	if err != nil {
		return err
	}

	items, batchErr := runner.RunBatch(ctx, base, models, batchJobs)

	out := cmd.OutOrStdout()
	for _, item := range items {
		opts := base
		opts.HierarchyIndex = item.Model
		recordRun(st, opts, item.Result, item.Err)

		switch {
		case item.Err != nil:
			fmt.Fprintf(out, "model %d: FAILED: %v\n", item.Model, item.Err)
		case item.Result.Emitted:
			fmt.Fprintf(out, "model %d: %s %s\n", item.Model, item.Result.Outcome, item.Result.ArtifactPath)
		default:
			fmt.Fprintf(out, "model %d: %s\n", item.Model, item.Result.Last())
		}
	}
	return batchErr
}
