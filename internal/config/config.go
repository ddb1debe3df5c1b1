package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"romgen/internal/modes"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when --config is not given.
const DefaultFile = "romgen.yaml"

// Config holds all romgen configuration.
type Config struct {
	// Per-run options, overridable by generate flags
	Run RunConfig `yaml:"run"`

	// External collaborators
	Deriver   DeriverConfig   `yaml:"deriver"`
	Checker   CheckerConfig   `yaml:"checker"`
	Hierarchy HierarchyConfig `yaml:"hierarchy"`

	// Execution settings for collaborator processes
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RunConfig holds the options of a single generation run.
type RunConfig struct {
	ModeSelection      string       `yaml:"mode_selection"` // hierarchy, explicit (aliases hk, input)
	PsiModes           []modes.Mode `yaml:"p_modes"`
	ThetaModes         []modes.Mode `yaml:"t_modes"`
	HierarchyIndex     ModelIndex   `yaml:"hierarchy_index"`
	EmitArtifact       bool         `yaml:"emit_artifact"`
	DisplayInteractive bool         `yaml:"display_interactive"`
	ApplyScaleFactors  bool         `yaml:"apply_scale_factors"`
	CheckConservation  bool         `yaml:"check_conservation"`
	ConservationPolicy string       `yaml:"conservation_policy"` // abort, warn
	Overwrite          string       `yaml:"overwrite"`           // ask, always, never
	OutputDirectory    string       `yaml:"output_directory"`
}

// DeriverConfig configures the symbolic RHS deriver bridge.
type DeriverConfig struct {
	Command   []string `yaml:"command,omitempty"`
	Timeout   string   `yaml:"timeout"`
	CachePath string   `yaml:"cache_path"` // empty disables the cache
}

// CheckerConfig configures the conservation checker bridge.
type CheckerConfig struct {
	Command []string `yaml:"command,omitempty"`
}

// HierarchyConfig configures where hierarchy models come from. With neither
// set, only the built-in models exist.
type HierarchyConfig struct {
	File    string   `yaml:"file"`
	Command []string `yaml:"command,omitempty"`
}

// ExecutionConfig configures collaborator processes.
type ExecutionConfig struct {
	// Allowed binaries by base name; empty allows any
	AllowedBinaries []string `yaml:"allowed_binaries,omitempty"`

	// Default timeout for commands
	DefaultTimeout string `yaml:"default_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			ModeSelection:      "hierarchy",
			PsiModes:           []modes.Mode{{M: 1, N: 1}},
			ThetaModes:         []modes.Mode{{M: 0, N: 2}, {M: 1, N: 1}},
			HierarchyIndex:     1,
			EmitArtifact:       true,
			DisplayInteractive: false,
			ApplyScaleFactors:  true,
			CheckConservation:  false,
			ConservationPolicy: "abort",
			Overwrite:          "ask",
			OutputDirectory:    "Matlabfiles",
		},
		Deriver: DeriverConfig{
			Timeout:   "10m",
			CachePath: filepath.Join(".romgen", "cache.db"),
		},
		Execution: ExecutionConfig{
			DefaultTimeout: "2m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("ROMGEN_OUTPUT_DIR"); dir != "" {
		c.Run.OutputDirectory = dir
	}
	if cmd := os.Getenv("ROMGEN_DERIVER"); cmd != "" {
		c.Deriver.Command = strings.Fields(cmd)
	}
	if cmd := os.Getenv("ROMGEN_CHECKER"); cmd != "" {
		c.Checker.Command = strings.Fields(cmd)
	}
	if path := os.Getenv("ROMGEN_CACHE"); path != "" {
		c.Deriver.CachePath = path
	}
	if level := os.Getenv("ROMGEN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetDeriverTimeout returns the deriver timeout as a duration.
func (c *Config) GetDeriverTimeout() time.Duration {
	d, err := time.ParseDuration(c.Deriver.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetExecutionTimeout returns the default execution timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.DefaultTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the non-run sections. Run options are validated by the
// pipeline before a run starts.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"deriver.timeout":           c.Deriver.Timeout,
		"execution.default_timeout": c.Execution.DefaultTimeout,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
	}

	if c.Logging.Level != "" {
		valid := false
		for _, l := range ValidLogLevels {
			if strings.EqualFold(c.Logging.Level, l) {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
		}
	}

	if c.Hierarchy.File != "" && len(c.Hierarchy.Command) > 0 {
		return fmt.Errorf("hierarchy.file and hierarchy.command are mutually exclusive")
	}
	return nil
}
