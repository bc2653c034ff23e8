package procrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func shell(t *testing.T) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	return "/bin/sh"
}

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	sh := shell(t)
	r := NewExecRunner(logger.Nop())

	res, err := r.Run(context.Background(), Command{
		Path:    sh,
		Args:    []string{"-c", "echo out; echo err 1>&2; exit 3"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestExecRunner_RunsInDir(t *testing.T) {
	sh := shell(t)
	dir := t.TempDir()
	r := NewExecRunner(logger.Nop())

	res, err := r.Run(context.Background(), Command{
		Path:    sh,
		Args:    []string{"-c", "echo solid > output.stl"},
		Dir:     dir,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.FileExists(t, filepath.Join(dir, "output.stl"))
}

func TestExecRunner_Timeout(t *testing.T) {
	sh := shell(t)
	r := NewExecRunner(logger.Nop())

	start := time.Now()
	_, err := r.Run(context.Background(), Command{
		Path:    sh,
		Args:    []string{"-c", "sleep 10"},
		Timeout: 200 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecRunner_CallerCancel(t *testing.T) {
	sh := shell(t)
	r := NewExecRunner(logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx, Command{Path: sh, Args: []string{"-c", "sleep 10"}, Timeout: time.Minute})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestExecRunner_NotFound(t *testing.T) {
	r := NewExecRunner(logger.Nop())

	_, err := r.Run(context.Background(), Command{Path: "/nonexistent/blender", Timeout: time.Second})
	assert.ErrorIs(t, err, ErrExecutableNotFound)

	_, err = r.Run(context.Background(), Command{})
	assert.ErrorIs(t, err, ErrExecutableNotFound)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "", Tail("abc", 0))
	assert.Equal(t, "abc", Tail("abc", 10))
	assert.Equal(t, "bc", Tail("abc", 2))

	// "é" is two bytes; a cut inside it moves forward to the next rune.
	assert.Equal(t, "x", Tail("éx", 2))
	assert.Equal(t, "éx", Tail("éx", 3))
	assert.Equal(t, "", Tail("日", 2))
	assert.True(t, utf8.ValidString(Tail("Traceback: ошибка", 5)))
}
