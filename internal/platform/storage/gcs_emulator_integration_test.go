package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

func TestGCSStoreEmulatorLifecycle(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("RUN_GCS_EMULATOR_INTEGRATION")), "true") {
		t.Skip("set RUN_GCS_EMULATOR_INTEGRATION=true to run emulator integration tests")
	}
	host := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
	if host == "" {
		host = "http://127.0.0.1:4443"
	}
	bucket := fmt.Sprintf("it-assets-%d", time.Now().UnixNano())
	createBucket(t, host, bucket)

	ctx := context.Background()
	st, err := NewGCSStore(ctx, logger.Nop(), Config{Mode: ModeGCSEmulator, EmulatorHost: host, GCSBucket: bucket})
	require.NoError(t, err)
	defer st.Close()

	obj, err := st.Put(ctx, CategoryUploads, "p1/drawing.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "gs://"+bucket+"/uploads/p1/drawing.png", obj.Path)

	rc, err := st.Open(ctx, obj.Path)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "png", string(b))

	require.NoError(t, st.Delete(ctx, obj.Path))
	_, err = st.Open(ctx, obj.Path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func createBucket(t *testing.T, host, bucket string) {
	t.Helper()
	body := strings.NewReader(fmt.Sprintf(`{"name":%q}`, bucket))
	resp, err := http.Post(host+"/storage/v1/b?project=test", "application/json", body)
	if err != nil {
		t.Skipf("storage emulator not reachable at %s: %v", host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		t.Fatalf("create bucket: status %d", resp.StatusCode)
	}
}
