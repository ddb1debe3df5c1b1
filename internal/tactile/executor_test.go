package tactile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on Windows")
	}
	path := filepath.Join(t.TempDir(), "bridge.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecutor_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	e := NewExecutor(nil, 0)

	result, err := e.Execute(context.Background(), Command{
		Argv:  []string{"sh", "-c", "cat; echo done >&2"},
		Stdin: []byte("hello"),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(result.Stdout) != "hello" {
		t.Errorf("expected stdout %q, got %q", "hello", result.Stdout)
	}
	if !strings.Contains(string(result.Stderr), "done") {
		t.Errorf("expected stderr to contain done, got %q", result.Stderr)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestExecutor_ExitError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	e := NewExecutor(nil, 0)

	_, err := e.Execute(context.Background(), Command{Argv: []string{"sh", "-c", "echo sympy blew up >&2; exit 3"}})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", exitErr.ExitCode)
	}
	if !strings.Contains(err.Error(), "sympy blew up") {
		t.Errorf("expected stderr in message, got %q", err.Error())
	}
}

func TestExecutor_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep")
	}
	e := NewExecutor(nil, 200*time.Millisecond)

	start := time.Now()
	_, err := e.Execute(context.Background(), Command{Argv: []string{"sleep", "10"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestExecutor_Allowlist(t *testing.T) {
	e := NewExecutor([]string{"python3"}, 0)

	if err := e.Validate(Command{Argv: []string{"/usr/bin/python3", "derive.py"}}); err != nil {
		t.Errorf("expected python3 to be allowed: %v", err)
	}
	if err := e.Validate(Command{Argv: []string{"rm", "-rf", "/"}}); !errors.Is(err, ErrBinaryNotAllowed) {
		t.Errorf("expected ErrBinaryNotAllowed, got %v", err)
	}
	if err := e.Validate(Command{}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestExecutor_RunJSON(t *testing.T) {
	script := writeScript(t, `read line
case "$line" in
  *'"model":1'*) echo '{"p_modes":[[1,1]],"t_modes":[[0,2],[1,1]]}' ;;
  *) echo '{"error":"unknown model"}' ;;
esac
`)
	e := NewExecutor(nil, 5*time.Second)

	var resp struct {
		PModes [][2]int `json:"p_modes"`
		TModes [][2]int `json:"t_modes"`
	}
	if err := e.RunJSON(context.Background(), []string{script}, map[string]int{"model": 1}, &resp); err != nil {
		t.Fatalf("RunJSON failed: %v", err)
	}
	if len(resp.PModes) != 1 || len(resp.TModes) != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}

	err := e.RunJSON(context.Background(), []string{script}, map[string]int{"model": 9}, &resp)
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Errorf("expected bridge error, got %v", err)
	}
}

func TestExecutor_RunJSON_InvalidResponse(t *testing.T) {
	script := writeScript(t, "cat >/dev/null; echo not json\n")
	e := NewExecutor(nil, 5*time.Second)

	var resp map[string]interface{}
	err := e.RunJSON(context.Background(), []string{script}, struct{}{}, &resp)
	if err == nil || !strings.Contains(err.Error(), "invalid JSON response") {
		t.Errorf("expected invalid JSON error, got %v", err)
	}
}
