package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

func newLocal(t *testing.T) *LocalStore {
	t.Helper()
	dir := t.TempDir()
	st, err := NewLocalStore(logger.Nop(), filepath.Join(dir, "uploads"), filepath.Join(dir, "outputs"))
	require.NoError(t, err)
	return st
}

func TestLocalStore_PutOpenDelete(t *testing.T) {
	st := newLocal(t)
	ctx := context.Background()

	obj, err := st.Put(ctx, CategoryUploads, "p1/a1/drawing.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, obj.Backend)
	assert.Equal(t, int64(9), obj.Size)
	assert.True(t, filepath.IsAbs(obj.Path))
	assert.Contains(t, obj.Path, filepath.Join("uploads", "p1", "a1", "drawing.png"))

	rc, err := st.Open(ctx, obj.Path)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))

	require.NoError(t, st.Delete(ctx, obj.Path))
	require.NoError(t, st.Delete(ctx, obj.Path))
	_, err = st.Open(ctx, obj.Path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutFile(t *testing.T) {
	st := newLocal(t)
	src := filepath.Join(t.TempDir(), "output.stl")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte("x"), 128), 0o644))

	obj, err := st.PutFile(context.Background(), CategoryOutputs, "p1/job/output.stl", src, "model/stl")
	require.NoError(t, err)
	assert.Equal(t, int64(128), obj.Size)
	assert.Contains(t, obj.Path, filepath.Join("outputs", "p1", "job", "output.stl"))
	assert.FileExists(t, obj.Path)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	st := newLocal(t)
	for _, key := range []string{"", "../etc/passwd", "a/../../b"} {
		_, err := st.Put(context.Background(), CategoryUploads, key, strings.NewReader("x"), "")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestLocalStore_CancelledContext(t *testing.T) {
	st := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.Put(ctx, CategoryUploads, "p/x.bin", strings.NewReader("data"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStores_ForBackend(t *testing.T) {
	local := newLocal(t)
	s := NewStores(local)

	got, err := s.ForBackend("")
	require.NoError(t, err)
	assert.Same(t, local, got)

	_, err = s.ForBackend(ModeGCS)
	assert.Error(t, err)
}

func TestParseGCSPath(t *testing.T) {
	b, n, err := ParseGCSPath(GCSPath("bucket", "uploads/p/x.png"))
	require.NoError(t, err)
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "uploads/p/x.png", n)

	for _, bad := range []string{"/tmp/x", "gs://", "gs://bucket", "gs:///x"} {
		_, _, err := ParseGCSPath(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}
}

func TestClientOptionsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	assert.Nil(t, ClientOptionsFromEnv())

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/sa.json")
	assert.Len(t, ClientOptionsFromEnv(), 1)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", `{"type":"service_account"}`)
	assert.Len(t, ClientOptionsFromEnv(), 1)
}
