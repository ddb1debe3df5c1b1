package emit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"romgen/internal/logging"
	"romgen/internal/modes"

	"go.uber.org/zap"
)

var (
	// ErrUnknownOverwritePolicy indicates an unrecognized policy name.
	ErrUnknownOverwritePolicy = errors.New("unknown overwrite policy")

	// ErrNoConfirmer indicates the ask policy without a way to ask.
	ErrNoConfirmer = errors.New("overwrite confirmation required but no confirmer configured")
)

// OverwritePolicy decides what happens when the artifact already exists.
type OverwritePolicy string

const (
	OverwriteAsk    OverwritePolicy = "ask"
	OverwriteAlways OverwritePolicy = "always"
	OverwriteNever  OverwritePolicy = "never"
)

// ParseOverwritePolicy parses a policy name; empty means ask.
func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch OverwritePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverwriteAsk:
		return OverwriteAsk, nil
	case OverwriteAlways:
		return OverwriteAlways, nil
	case OverwriteNever:
		return OverwriteNever, nil
	}
	return "", fmt.Errorf("%w: %q (valid: ask, always, never)", ErrUnknownOverwritePolicy, s)
}

// Outcome describes what Emit did.
type Outcome int

const (
	// Failed is the outcome of every error return; nothing is known to
	// have been written.
	Failed Outcome = iota
	// Created means a new artifact was written.
	Created
	// Replaced means an existing artifact was overwritten.
	Replaced
	// Declined means an artifact existed and was left untouched.
	Declined
)

func (o Outcome) String() string {
	switch o {
	case Failed:
		return "failed"
	case Created:
		return "created"
	case Replaced:
		return "replaced"
	case Declined:
		return "declined"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Emitter writes artifacts under the overwrite policy.
type Emitter struct {
	Policy  OverwritePolicy
	Confirm Confirmer
}

// New creates an emitter.
func New(policy OverwritePolicy, confirm Confirmer) *Emitter {
	return &Emitter{Policy: policy, Confirm: confirm}
}

// Emit renders the artifact for set into dir. If the artifact exists and the
// overwrite is not allowed, nothing on disk changes and the outcome is
// Declined with a nil error.
func (e *Emitter) Emit(ctx context.Context, dir string, set modes.Set, psiBlock, thetaBlock string) (string, Outcome, error) {
	log := logging.Get(logging.CategoryEmit)
	path := ArtifactPath(dir, set.NumModes())

	var content bytes.Buffer
	if err := Render(&content, set, psiBlock, thetaBlock); err != nil {
		return path, Failed, err
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return e.overwrite(ctx, path, content.Bytes())

	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0755); err != nil {
			return path, Failed, fmt.Errorf("failed to create output directory: %w", err)
		}
		err := createFile(path, content.Bytes())
		if errors.Is(err, os.ErrExist) {
			// Another writer created it after the stat.
			return e.overwrite(ctx, path, content.Bytes())
		}
		if err != nil {
			return path, Failed, err
		}
		log.Info("artifact written", zap.String("path", path), zap.Int("bytes", content.Len()))
		return path, Created, nil

	default:
		return path, Failed, fmt.Errorf("failed to stat artifact: %w", err)
	}
}

// overwrite handles an artifact that already exists at path.
func (e *Emitter) overwrite(ctx context.Context, path string, data []byte) (string, Outcome, error) {
	log := logging.Get(logging.CategoryEmit)

	ok, err := e.allowOverwrite(ctx, path)
	if err != nil {
		return path, Failed, err
	}
	if !ok {
		log.Info("artifact exists, not overwritten", zap.String("path", path))
		return path, Declined, nil
	}
	if err := replaceFile(path, data); err != nil {
		return path, Failed, err
	}
	log.Info("artifact replaced", zap.String("path", path))
	return path, Replaced, nil
}

func (e *Emitter) allowOverwrite(ctx context.Context, path string) (bool, error) {
	switch e.Policy {
	case OverwriteAlways:
		return true, nil
	case OverwriteNever:
		return false, nil
	case OverwriteAsk, "":
		if e.Confirm == nil {
			return false, ErrNoConfirmer
		}
		return e.Confirm.Confirm(ctx, fmt.Sprintf("System already constructed: %s. Overwrite file", path))
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownOverwritePolicy, e.Policy)
}

// createFile writes data to a file that must not already exist.
func createFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return f.Close()
}

// replaceFile swaps in new content through a temp file and rename.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set artifact permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace artifact: %w", err)
	}
	return nil
}
