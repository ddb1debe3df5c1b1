// Package logging provides categorized structured logging for romgen.
// Every category is a named child of one zap logger; until Init is called the
// root logger is a no-op, so library code can log unconditionally.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // CLI startup, config loading
	CategoryPipeline  Category = "pipeline"  // Orchestrator stage transitions
	CategoryModes     Category = "modes"     // Mode registry and hierarchy
	CategoryDerive    Category = "derive"    // RHS derivation bridge
	CategoryConserv   Category = "conserv"   // Conservation checks
	CategoryTranslate Category = "translate" // Symbolic to numeric translation
	CategoryEmit      Category = "emit"      // Artifact emission
	CategoryStore     Category = "store"     // Derivation cache
	CategoryTactile   Category = "tactile"   // External command execution
	CategoryWatch     Category = "watch"     // Config file watcher
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	File   string // optional path; stderr when empty
}

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init builds the root logger from cfg and installs it.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var zc zap.Config
	switch strings.ToLower(cfg.Format) {
	case "", "console", "text":
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return fmt.Errorf("unknown log format %q (valid: console, json)", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	} else {
		zc.OutputPaths = []string{"stderr"}
		zc.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetLogger(logger)
	return nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
}

// SetLogger replaces the root logger. Tests use this with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	root = l
	mu.Unlock()
}

// L returns the root logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Get returns the logger for a category.
func Get(category Category) *zap.Logger {
	return L().Named(string(category))
}

// Sync flushes buffered log entries.
func Sync() {
	_ = L().Sync()
}
