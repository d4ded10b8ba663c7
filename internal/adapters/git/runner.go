// Package git inspects a working tree by invoking the git command line tool
// and parsing its output. It implements the live-inspection resolution
// strategy and the trunk-distance calculation.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Logger defines the logging interface for the git adapter.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// ErrExecutableNotFound indicates none of the candidate git executables
// could be launched.
var ErrExecutableNotFound = errors.New("no usable git executable found")

// Commands returns the candidate executable names, tolerating
// platform-specific extensions. Each invocation reselects from this list.
func Commands() []string {
	if runtime.GOOS == "windows" {
		return []string{"git.cmd", "git.exe"}
	}
	return []string{"git"}
}

// Runner invokes one external inspection command per call. It captures
// stdout, trims trailing whitespace, and normalizes exit codes.
type Runner struct {
	commands []string
	env      []string
	logger   Logger
}

// NewRunner creates a Runner with a sanitized environment.
func NewRunner(log Logger) *Runner {
	return &Runner{
		commands: Commands(),
		env:      scrubbedEnv(os.Environ()),
		logger:   log,
	}
}

// scrubbedEnv removes GIT_DIR from the inspection environment. GIT_DIR is
// caller intent aimed at the surrounding tooling, not at the repository we
// inspect, and it would redirect every inspection command.
func scrubbedEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "GIT_DIR=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// Run tries each candidate executable in order and runs the first one that
// launches in dir with the given arguments. A candidate that cannot be
// found is not an error; when none can be launched, Run returns an error
// wrapping ErrExecutableNotFound. A non-zero exit code is not an error
// either: the captured output and the code are surfaced to the caller.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) (string, int, error) {
	for _, name := range r.commands {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Dir = dir
		cmd.Env = r.env
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		out := strings.TrimSpace(stdout.String())
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				continue
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				r.logger.Debug(ctx, "inspection command exited non-zero", map[string]interface{}{
					"command":   name,
					"args":      strings.Join(args, " "),
					"exit_code": exitErr.ExitCode(),
					"stderr":    strings.TrimSpace(stderr.String()),
				})
				return out, exitErr.ExitCode(), nil
			}
			return "", -1, fmt.Errorf("run %s %s: %w", name, strings.Join(args, " "), err)
		}
		return out, 0, nil
	}

	r.logger.Debug(ctx, "unable to find git executable", map[string]interface{}{
		"tried": r.commands,
	})
	return "", -1, fmt.Errorf("%w: tried %v", ErrExecutableNotFound, r.commands)
}
