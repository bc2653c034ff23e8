package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// GCSStore keeps blobs in one bucket, prefixed by category.
type GCSStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

var _ BlobStore = (*GCSStore)(nil)

func NewGCSStore(ctx context.Context, log *logger.Logger, cfg Config) (*GCSStore, error) {
	bucket := strings.TrimSpace(cfg.GCSBucket)
	if bucket == "" {
		return nil, fmt.Errorf("missing GCS_BUCKET")
	}
	client, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	serviceLog := log.With("service", "GCSStore")
	serviceLog.Info("Object storage initialized", "mode", cfg.Mode, "bucket", bucket, "emulator_host", cfg.EmulatorHost)
	return &GCSStore{log: serviceLog, client: client, bucket: bucket}, nil
}

func newStorageClientForMode(ctx context.Context, cfg Config) (*storage.Client, error) {
	switch cfg.Mode {
	case ModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
		if endpoint == "" {
			return nil, fmt.Errorf("gcs_emulator mode requires STORAGE_EMULATOR_HOST")
		}
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, fmt.Errorf("unsupported object storage mode %q", cfg.Mode)
	}
}

// ClientOptionsFromEnv reads service account credentials from GOOGLE_APPLICATION_CREDENTIALS_JSON
// (inline JSON) or GOOGLE_APPLICATION_CREDENTIALS (file path). Neither set means ambient
// credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func (s *GCSStore) Backend() string { return ModeGCS }

func (s *GCSStore) objectName(cat Category, key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return string(cat) + "/" + key, nil
}

func (s *GCSStore) Put(ctx context.Context, cat Category, key string, r io.Reader, contentType string) (Object, error) {
	name, err := s.objectName(cat, key)
	if err != nil {
		return Object{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return Object{Backend: ModeGCS, Path: GCSPath(s.bucket, name), Size: n, ContentType: contentType}, nil
}

func (s *GCSStore) PutFile(ctx context.Context, cat Category, key, localPath, contentType string) (Object, error) {
	return putFile(ctx, s, cat, key, localPath, contentType)
}

func (s *GCSStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, name, err := ParseGCSPath(path)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return rc, nil
}

func (s *GCSStore) Delete(ctx context.Context, path string) error {
	bucket, name, err := ParseGCSPath(path)
	if err != nil {
		return err
	}
	err = s.client.Bucket(bucket).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *GCSStore) Close() error { return s.client.Close() }

func GCSPath(bucket, name string) string {
	return "gs://" + bucket + "/" + name
}

func ParseGCSPath(path string) (bucket, name string, err error) {
	rest, ok := strings.CutPrefix(path, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: not a gs:// path: %s", ErrInvalidKey, path)
	}
	bucket, name, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || name == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidKey, path)
	}
	return bucket, name, nil
}
