package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"romgen/internal/config"
	"romgen/internal/emit"
	"romgen/internal/modes"
	"romgen/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	genMode      string
	genPsi       []string
	genTheta     []string
	genModel     config.ModelIndex
	genEmit      bool
	genDisplay   bool
	genScale     bool
	genCheck     bool
	genPolicy    string
	genOverwrite string
	genOut       string
)

// generateCmd runs one generation
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one truncated system",
	Long: `Resolves the mode set, derives both right-hand sides and writes
<out>/hk<N>_rhs.m. Flags override the run section of the config file.

Examples:
  romgen generate                           # hierarchy model 1 (Lorenz)
  romgen generate --model 2 --check
  romgen generate --psi 1,1 --theta 0,2 --theta 1,1 --overwrite always`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genMode, "mode", "", "Mode selection: hierarchy or explicit")
	f.StringArrayVar(&genPsi, "psi", nil, "Streamfunction mode m,n (repeatable; implies explicit selection)")
	f.StringArrayVar(&genTheta, "theta", nil, "Temperature mode m,n (repeatable; implies explicit selection)")
	f.Var(&genModel, "model", "Hierarchy model number")
	f.BoolVar(&genEmit, "emit", true, "Write the MATLAB artifact")
	f.BoolVar(&genDisplay, "display", false, "Show the system in the terminal")
	f.BoolVar(&genScale, "scale", true, "Apply the a(i) scale factors")
	f.BoolVar(&genCheck, "check", false, "Check conservation of the dissipation-free system")
	f.StringVar(&genPolicy, "on-violation", "", "Conservation violation policy: abort or warn")
	f.StringVar(&genOverwrite, "overwrite", "", "Existing artifact policy: ask, always or never")
	f.StringVar(&genOut, "out", "", "Output directory")
}

// applyRunFlags overlays the flags the user actually set onto rc.
func applyRunFlags(cmd *cobra.Command, rc config.RunConfig) (config.RunConfig, error) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		rc.ModeSelection = genMode
	}
	if flags.Changed("psi") || flags.Changed("theta") {
		rc.ModeSelection = string(modes.SelectExplicit)
	}
	if flags.Changed("psi") {
		psi, err := modes.ParseModes(genPsi)
		if err != nil {
			return rc, &pipeline.ConfigError{Option: "psi", Err: err}
		}
		rc.PsiModes = psi
	}
	if flags.Changed("theta") {
		theta, err := modes.ParseModes(genTheta)
		if err != nil {
			return rc, &pipeline.ConfigError{Option: "theta", Err: err}
		}
		rc.ThetaModes = theta
	}
	if flags.Changed("model") {
		rc.HierarchyIndex = genModel
	}
	if flags.Changed("emit") {
		rc.EmitArtifact = genEmit
	}
	if flags.Changed("display") {
		rc.DisplayInteractive = genDisplay
	}
	if flags.Changed("scale") {
		rc.ApplyScaleFactors = genScale
	}
	if flags.Changed("check") {
		rc.CheckConservation = genCheck
	}
	if flags.Changed("on-violation") {
		rc.ConservationPolicy = genPolicy
	}
	if flags.Changed("overwrite") {
		rc.Overwrite = genOverwrite
	}
	if flags.Changed("out") {
		rc.OutputDirectory = genOut
	}
	return rc, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	rc, err := applyRunFlags(cmd, cfg.Run)
	if err != nil {
		return err
	}
	opts, err := pipeline.OptionsFromConfig(rc)
	if err != nil {
		return err
	}
	// Reject bad options before the store creates any file.
	if err := opts.Validate(); err != nil {
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

	out := cmd.OutOrStdout()
	runner, err := buildRunner(cfg, st, out, true)
	if err != nil {
		return err
	}

	res, runErr := runner.Run(ctx, opts)
	recordRun(st, opts, res, runErr)
	if runErr != nil {
		return runErr
	}
	printResult(out, res)
	return nil
}

func printResult(w io.Writer, res *pipeline.Result) {
	if res.Violation != nil {
		fmt.Fprintf(w, "Warning: %v\n", res.Violation)
	}
	if res.Emitted {
		switch res.Outcome {
		case emit.Declined:
			fmt.Fprintf(w, "System already constructed: %s not overwritten\n", res.ArtifactPath)
		case emit.Replaced:
			fmt.Fprintf(w, "Replaced %s\n", res.ArtifactPath)
		case emit.Created:
			fmt.Fprintf(w, "Created %s\n", res.ArtifactPath)
		default:
			fmt.Fprintf(w, "%s: %s\n", res.Outcome, res.ArtifactPath)
		}
	}
	fmt.Fprintf(w, "Time = %s\n", res.Elapsed.Round(time.Millisecond))
}
