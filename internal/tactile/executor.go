// Package tactile runs the external collaborators (symbolic deriver,
// conservation checker, hierarchy generator) as child processes that speak
// JSON on stdin and stdout.
package tactile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"romgen/internal/logging"

	"go.uber.org/zap"
)

var (
	// ErrEmptyCommand indicates a bridge configured without a command line.
	ErrEmptyCommand = errors.New("empty command")

	// ErrBinaryNotAllowed indicates a binary outside the allowlist.
	ErrBinaryNotAllowed = errors.New("binary not allowed")
)

// Command is a single invocation.
type Command struct {
	Argv    []string
	Stdin   []byte
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Result is the outcome of a finished invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// ExitError reports a non-zero exit, carrying stderr for context.
type ExitError struct {
	Argv     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", strings.Join(e.Argv, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Executor runs commands with an optional binary allowlist and a default
// timeout.
type Executor struct {
	// AllowedBinaries restricts which binaries may run, by base name. Empty
	// allows everything.
	AllowedBinaries []string

	DefaultTimeout time.Duration
	Dir            string
	Env            []string
}

// NewExecutor creates an executor with the given allowlist and timeout.
func NewExecutor(allowed []string, timeout time.Duration) *Executor {
	return &Executor{
		AllowedBinaries: allowed,
		DefaultTimeout:  timeout,
	}
}

// Validate checks that cmd can be executed by this executor.
func (e *Executor) Validate(cmd Command) error {
	if len(cmd.Argv) == 0 || cmd.Argv[0] == "" {
		return ErrEmptyCommand
	}
	if len(e.AllowedBinaries) == 0 {
		return nil
	}
	base := filepath.Base(cmd.Argv[0])
	for _, allowed := range e.AllowedBinaries {
		if base == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrBinaryNotAllowed, base)
}

// Execute runs cmd to completion.
func (e *Executor) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if err := e.Validate(cmd); err != nil {
		return nil, err
	}

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = e.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	if c.Dir == "" {
		c.Dir = e.Dir
	}
	if len(cmd.Env) > 0 || len(e.Env) > 0 {
		c.Env = append(append([]string{}, e.Env...), cmd.Env...)
	}
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	log := logging.Get(logging.CategoryTactile)
	log.Debug("executing", zap.Strings("argv", cmd.Argv), zap.Duration("timeout", timeout))

	start := time.Now()
	runErr := c.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s: %w", cmd.Argv[0], ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return result, &ExitError{
				Argv:     cmd.Argv,
				ExitCode: result.ExitCode,
				Stderr:   stderr.String(),
				Err:      runErr,
			}
		}
		return result, fmt.Errorf("%s: %w", cmd.Argv[0], runErr)
	}

	log.Debug("command finished",
		zap.String("binary", cmd.Argv[0]),
		zap.Duration("duration", result.Duration),
		zap.Int("stdout_bytes", len(result.Stdout)))
	return result, nil
}

// bridgeError is the error envelope every bridge response may carry.
type bridgeError struct {
	Error string `json:"error,omitempty"`
}

// RunJSON sends req as JSON on stdin and decodes stdout into resp. A
// non-empty "error" field in the response is returned as an error.
func (e *Executor) RunJSON(ctx context.Context, argv []string, req, resp interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	result, err := e.Execute(ctx, Command{Argv: argv, Stdin: payload})
	if err != nil {
		return err
	}

	var envelope bridgeError
	if err := json.Unmarshal(result.Stdout, &envelope); err != nil {
		return fmt.Errorf("%s: invalid JSON response: %w", argv[0], err)
	}
	if envelope.Error != "" {
		return fmt.Errorf("%s: %s", argv[0], envelope.Error)
	}
	if err := json.Unmarshal(result.Stdout, resp); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", argv[0], err)
	}
	return nil
}
