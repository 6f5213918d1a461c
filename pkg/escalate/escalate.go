// Package escalate is the sole channel for running commands with
// elevated rights. Every privileged operation is composed into one
// command string so the user sees a single consent prompt per call.
package escalate

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultTimeout bounds a single escalated command, including the time
// the consent prompt stays open.
const DefaultTimeout = 2 * time.Minute

// Result is the structured outcome of an escalated command. A user
// cancellation or credential failure shows up as a non-zero exit code,
// never as a crash.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Ok reports whether the command exited cleanly.
func (r Result) Ok() bool { return r.ExitCode == 0 }

// Error carries the raw diagnostics of a failed escalated command so
// callers can surface them verbatim.
type Error struct {
	Command string
	Result  Result
}

func (e *Error) Error() string {
	detail := strings.TrimSpace(e.Result.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Result.Stdout)
	}
	if detail == "" {
		detail = "no output"
	}
	return fmt.Sprintf("escalated command failed (exit %d): %s", e.Result.ExitCode, detail)
}

// Runner executes one shell command string with elevated rights.
// Implemented by Gateway; swapped for a fake in tests.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

// Gateway escalates through the OS consent mechanism: osascript's
// administrator prompt on macOS, polkit (pkexec) or sudo on Linux.
type Gateway struct {
	Timeout time.Duration
}

func New() *Gateway {
	return &Gateway{Timeout: DefaultTimeout}
}

// Run executes the command with elevated rights and waits for it to
// finish. Never retries. On timeout the underlying process is
// force-terminated rather than left running.
func (g *Gateway) Run(ctx context.Context, command string) (Result, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd, err := elevatedCommand(ctx, command)
	if err != nil {
		return Result{}, err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			// Couldn't even start (binary missing, context dead).
			return result, fmt.Errorf("failed to run escalated command: %w", runErr)
		}
	}
	if ctx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("escalated command timed out after %s", timeout)
	}
	return result, nil
}

// elevatedCommand wraps the shell command in the platform's consent
// mechanism.
func elevatedCommand(ctx context.Context, command string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("do shell script %s with administrator privileges", appleScriptString(command))
		return exec.CommandContext(ctx, "osascript", "-e", script), nil
	case "linux":
		if _, err := exec.LookPath("pkexec"); err == nil {
			return exec.CommandContext(ctx, "pkexec", "sh", "-c", command), nil
		}
		return exec.CommandContext(ctx, "sudo", "sh", "-c", command), nil
	default:
		return nil, fmt.Errorf("privilege escalation is not supported on %s", runtime.GOOS)
	}
}

// appleScriptString quotes a shell command for embedding in an
// AppleScript source line.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
