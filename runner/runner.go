// Package runner executes external commands behind a narrow, fakeable
// interface. Deployment phases shell out to system tools (systemctl,
// useradd, cp, sudo); routing every invocation through Runner keeps those
// phases testable without touching the host.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command describes a single external command invocation.
type Command struct {
	Name    string        // binary to execute
	Args    []string      // arguments, excluding the binary name
	Dir     string        // working directory; empty inherits the parent's
	Env     []string      // extra KEY=value pairs appended to the parent environment
	Timeout time.Duration // per-command limit; zero means no limit beyond ctx
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds the outcome of a command that ran to completion. A non-zero
// exit status still produces a Result; the exit code is state for the caller
// to interpret (systemctl is-active exits 3 for an inactive unit), not an
// error.
type Result struct {
	ExitCode int
	Output   string // combined stdout and stderr
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

type execRunner struct{}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner() Runner {
	return &execRunner{}
}

func (r *execRunner) Run(ctx context.Context, command Command) (*Result, error) {
	if command.Name == "" {
		return nil, fmt.Errorf("command name is empty")
	}

	runCtx := ctx
	if command.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	slog.Debug("Executing command",
		"command", command.Name,
		"args", command.Args,
		"working_dir", command.Dir)

	cmd := exec.CommandContext(runCtx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		// Start with the existing environment and append/override with
		// caller variables.
		cmd.Env = append(os.Environ(), command.Env...)
	}

	out, err := cmd.CombinedOutput()
	output := string(out)
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("command %q timed out: %w", command.String(), ctxErr)
			}
			return nil, fmt.Errorf("command %q canceled: %w", command.String(), ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Debug("Command exited non-zero",
				"command", command.Name,
				"args", command.Args,
				"exit_code", exitErr.ExitCode(),
				"output", output)
			return &Result{ExitCode: exitErr.ExitCode(), Output: output}, nil
		}
		slog.Error("Service operation failed",
			"layer", "runner",
			"operation", "command_execute",
			"command", command.String(),
			"error", err)
		return nil, fmt.Errorf("running command %q: %w", command.String(), err)
	}

	return &Result{ExitCode: 0, Output: output}, nil
}

// ParseCommandLine splits a whitespace-delimited command line into a binary
// name and its arguments. Quoting is not interpreted; command lines that
// need shell features should invoke a shell explicitly.
func ParseCommandLine(line string) (string, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("command line is empty")
	}
	return fields[0], fields[1:], nil
}
