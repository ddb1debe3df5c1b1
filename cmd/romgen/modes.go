package main

import (
	"fmt"

	"romgen/internal/config"
	"romgen/internal/display"
	"romgen/internal/emit"
	"romgen/internal/hierarchy"
	"romgen/internal/modes"
	"romgen/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	modesModel config.ModelIndex = 1
	modesPsi   []string
	modesTheta []string
	modesList  bool
	modesPlain bool
)

// modesCmd shows a resolved mode set without deriving anything
var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "Show the state-vector layout of a mode set",
	Long: `Resolves a mode set the way generate would and prints the x(i)
assignment of every mode. With --list, prints the hierarchy models
available from the configured table.`,
	Args: cobra.NoArgs,
	RunE: runModes,
}

func init() {
	modesCmd.Flags().Var(&modesModel, "model", "Hierarchy model number")
	modesCmd.Flags().StringArrayVar(&modesPsi, "psi", nil, "Streamfunction mode m,n (repeatable)")
	modesCmd.Flags().StringArrayVar(&modesTheta, "theta", nil, "Temperature mode m,n (repeatable)")
	modesCmd.Flags().BoolVar(&modesList, "list", false, "List the hierarchy models")
	modesCmd.Flags().BoolVar(&modesPlain, "plain", false, "Print markdown without terminal styling")
}

func runModes(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	if modesList {
		table, ok := gen.(*hierarchy.Table)
		if !ok {
			return fmt.Errorf("hierarchy command generators cannot be listed")
		}
		for _, n := range table.Numbers() {
			set := table.Models[n]
			fmt.Fprintf(out, "  %3d  %2d modes  psi %v  theta %v\n", n, set.NumModes(), set.Psi, set.Theta)
		}
		return nil
	}

	sel := modes.SelectHierarchy
	var explicit modes.Set
	if cmd.Flags().Changed("psi") || cmd.Flags().Changed("theta") {
		sel = modes.SelectExplicit
		if explicit.Psi, err = modes.ParseModes(modesPsi); err != nil {
			return &pipeline.ConfigError{Option: "psi", Err: err}
		}
		if explicit.Theta, err = modes.ParseModes(modesTheta); err != nil {
			return &pipeline.ConfigError{Option: "theta", Err: err}
		}
	}
	if modesModel < 1 {
		return &pipeline.ConfigError{Option: "model", Value: int(modesModel), Err: modes.ErrInvalidModel}
	}

	set, err := modes.NewRegistry(gen).Resolve(cmd.Context(), sel, int(modesModel), explicit)
	if err != nil {
		return &pipeline.ModeError{Selection: sel, Model: int(modesModel), Err: err}
	}

	md := fmt.Sprintf("# %s (%d modes)\n\n%s", emit.FunctionName(set.NumModes()), set.NumModes(), display.ModeTable(set))
	if modesPlain {
		fmt.Fprint(out, md)
		return nil
	}
	rendered, err := display.RenderMarkdown(md, display.DefaultWidth)
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	return nil
}
