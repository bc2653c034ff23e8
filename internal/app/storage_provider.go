package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/storage"
)

var newGCSStore = func(ctx context.Context, log *logger.Logger, cfg storage.Config) (storage.BlobStore, error) {
	return storage.NewGCSStore(ctx, log, cfg)
}

type StorageBootstrapErrorCode string

const (
	StorageBootstrapErrorInvalidMode   StorageBootstrapErrorCode = "invalid_mode"
	StorageBootstrapErrorMissingBucket StorageBootstrapErrorCode = "missing_bucket"
	StorageBootstrapErrorLocalDirs     StorageBootstrapErrorCode = "local_dirs"
	StorageBootstrapErrorConnectFailed StorageBootstrapErrorCode = "connect_failed"
)

type StorageBootstrapError struct {
	Code  StorageBootstrapErrorCode
	Mode  string
	Cause error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf("object storage bootstrap failed (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveStores builds the blob stores for cfg.Mode. The local store is always present so rows
// written before a switch to GCS stay readable. outputs is where run_blender copies its files
// under a per-job key: the local store in local mode, the bucket otherwise.
func resolveStores(ctx context.Context, log *logger.Logger, cfg storage.Config) (stores *storage.Stores, outputs storage.BlobStore, err error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = storage.ModeLocal
	}
	cfg.Mode = mode

	switch mode {
	case storage.ModeLocal, storage.ModeGCS, storage.ModeGCSEmulator:
	default:
		return nil, nil, &StorageBootstrapError{
			Code:  StorageBootstrapErrorInvalidMode,
			Mode:  mode,
			Cause: fmt.Errorf("unsupported STORAGE_MODE %q (valid: local, gcs, gcs_emulator)", mode),
		}
	}

	local, err := storage.NewLocalStore(log, cfg.LocalUploadDir, cfg.LocalOutputDir)
	if err != nil {
		return nil, nil, &StorageBootstrapError{Code: StorageBootstrapErrorLocalDirs, Mode: mode, Cause: err}
	}
	if mode == storage.ModeLocal {
		log.Info("Object storage selected", "mode", mode, "upload_dir", cfg.LocalUploadDir, "output_dir", cfg.LocalOutputDir)
		return storage.NewStores(local), local, nil
	}

	if strings.TrimSpace(cfg.GCSBucket) == "" {
		return nil, nil, &StorageBootstrapError{
			Code:  StorageBootstrapErrorMissingBucket,
			Mode:  mode,
			Cause: errors.New("GCS_BUCKET is required for remote storage"),
		}
	}
	remote, err := newGCSStore(ctx, log, cfg)
	if err != nil {
		log.Error("Object storage provider selection failed", "mode", mode, "bucket", cfg.GCSBucket, "error", err)
		return nil, nil, &StorageBootstrapError{Code: StorageBootstrapErrorConnectFailed, Mode: mode, Cause: err}
	}
	log.Info("Object storage selected", "mode", mode, "bucket", cfg.GCSBucket)
	return storage.NewStores(remote, local), remote, nil
}
