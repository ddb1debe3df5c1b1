package pipeline

import (
	"strings"

	"romgen/internal/config"
	"romgen/internal/conserv"
	"romgen/internal/emit"
	"romgen/internal/modes"
)

// Options configure one run.
type Options struct {
	Selection          modes.Selection
	Explicit           modes.Set
	HierarchyIndex     int
	EmitArtifact       bool
	DisplayInteractive bool
	ApplyScaleFactors  bool
	CheckConservation  bool
	ConservationPolicy conserv.Policy
	Overwrite          emit.OverwritePolicy
	OutputDirectory    string
}

// OptionsFromConfig converts the run section of a config file. Unknown
// names are reported as ConfigErrors.
func OptionsFromConfig(rc config.RunConfig) (Options, error) {
	sel, err := modes.ParseSelection(rc.ModeSelection)
	if err != nil {
		return Options{}, &ConfigError{Option: "mode_selection", Value: rc.ModeSelection, Err: err}
	}
	policy, err := conserv.ParsePolicy(rc.ConservationPolicy)
	if err != nil {
		return Options{}, &ConfigError{Option: "conservation_policy", Value: rc.ConservationPolicy, Err: err}
	}
	overwrite, err := emit.ParseOverwritePolicy(rc.Overwrite)
	if err != nil {
		return Options{}, &ConfigError{Option: "overwrite", Value: rc.Overwrite, Err: err}
	}

	return Options{
		Selection:          sel,
		Explicit:           modes.Set{Psi: rc.PsiModes, Theta: rc.ThetaModes},
		HierarchyIndex:     int(rc.HierarchyIndex),
		EmitArtifact:       rc.EmitArtifact,
		DisplayInteractive: rc.DisplayInteractive,
		ApplyScaleFactors:  rc.ApplyScaleFactors,
		CheckConservation:  rc.CheckConservation,
		ConservationPolicy: policy,
		Overwrite:          overwrite,
		OutputDirectory:    rc.OutputDirectory,
	}, nil
}

// Validate performs the type and range checks of the VALIDATE_CONFIG stage.
func (o Options) Validate() error {
	switch o.Selection {
	case modes.SelectHierarchy, modes.SelectExplicit:
	default:
		return &ConfigError{Option: "mode_selection", Value: o.Selection, Err: modes.ErrUnknownSelection}
	}
	if o.HierarchyIndex < 1 {
		return &ConfigError{Option: "hierarchy_index", Value: o.HierarchyIndex, Err: modes.ErrInvalidModel}
	}
	if _, err := conserv.ParsePolicy(string(o.ConservationPolicy)); err != nil {
		return &ConfigError{Option: "conservation_policy", Value: o.ConservationPolicy, Err: err}
	}
	if _, err := emit.ParseOverwritePolicy(string(o.Overwrite)); err != nil {
		return &ConfigError{Option: "overwrite", Value: o.Overwrite, Err: err}
	}
	if o.EmitArtifact && strings.TrimSpace(o.OutputDirectory) == "" {
		return &ConfigError{Option: "output_directory", Err: ErrMissingOutputDir}
	}
	return nil
}
