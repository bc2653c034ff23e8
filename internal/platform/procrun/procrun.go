package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
	"unicode/utf8"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

var (
	ErrTimeout            = errors.New("process timed out")
	ErrExecutableNotFound = errors.New("executable not found")
)

// Runner invokes an external executable and waits for it.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Result of a completed process. A non-zero ExitCode is not an error: callers decide what a
// failed exit means. Stdout and Stderr are the full captured streams; use Tail for diagnostics.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Started  time.Time
	Duration time.Duration
}

type ExecRunner struct {
	log *logger.Logger
}

func NewExecRunner(log *logger.Logger) *ExecRunner {
	return &ExecRunner{log: log.With("component", "ProcRunner")}
}

// Run starts cmd and blocks until it exits, the timeout fires, or ctx is cancelled.
//
// Errors:
//   - ErrExecutableNotFound when Path does not resolve
//   - ErrTimeout when cmd.Timeout elapses (the process is killed; Result holds partial output)
//   - ctx.Err() when the caller cancels
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Path == "" {
		return Result{}, fmt.Errorf("%w: empty path", ErrExecutableNotFound)
	}
	if _, err := exec.LookPath(cmd.Path); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrExecutableNotFound, cmd.Path)
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	} else {
		r.log.Warn("command has no timeout", "path", cmd.Path)
	}

	c := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	killProcessGroup(c)
	c.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	res := Result{Started: time.Now().UTC(), ExitCode: -1}
	err := c.Run()
	res.Duration = time.Since(res.Started)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	r.log.Debug("process finished",
		"path", cmd.Path,
		"dir", cmd.Dir,
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration.Milliseconds(),
	)

	switch {
	case runCtx.Err() != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return res, ErrTimeout
	case ctx.Err() != nil:
		return res, ctx.Err()
	case err == nil:
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return res, fmt.Errorf("%w: %s", ErrExecutableNotFound, cmd.Path)
	}
	return res, fmt.Errorf("run %s: %w", cmd.Path, err)
}

// Tail returns at most the last n bytes of s, starting on a rune boundary.
func Tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
