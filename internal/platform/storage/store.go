package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

type Category string

const (
	CategoryUploads Category = "uploads"
	CategoryOutputs Category = "outputs"
)

const (
	ModeLocal       = "local"
	ModeGCS         = "gcs"
	ModeGCSEmulator = "gcs_emulator"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Object locates a stored blob. Path is what gets persisted on the asset row: an absolute file
// path for the local backend, gs://bucket/name for GCS.
type Object struct {
	Backend     string
	Path        string
	Size        int64
	ContentType string
}

type BlobStore interface {
	Backend() string
	Put(ctx context.Context, cat Category, key string, r io.Reader, contentType string) (Object, error)
	PutFile(ctx context.Context, cat Category, key string, localPath string, contentType string) (Object, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

type Config struct {
	Mode           string `yaml:"mode"`
	LocalUploadDir string `yaml:"local_upload_dir"`
	LocalOutputDir string `yaml:"local_output_dir"`
	GCSBucket      string `yaml:"gcs_bucket"`
	EmulatorHost   string `yaml:"emulator_host"`
}

// Stores holds the store new blobs are written to plus every store that existing rows may
// point at, keyed by backend name.
type Stores struct {
	Primary   BlobStore
	byBackend map[string]BlobStore
}

func NewStores(primary BlobStore, others ...BlobStore) *Stores {
	s := &Stores{Primary: primary, byBackend: map[string]BlobStore{}}
	for _, st := range append([]BlobStore{primary}, others...) {
		if st != nil {
			s.byBackend[st.Backend()] = st
		}
	}
	return s
}

func (s *Stores) ForBackend(backend string) (BlobStore, error) {
	if backend == "" {
		backend = ModeLocal
	}
	st, ok := s.byBackend[backend]
	if !ok {
		return nil, fmt.Errorf("no blob store configured for backend %q", backend)
	}
	return st, nil
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.ReplaceAll(strings.TrimSpace(key), "\\", "/"), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	return key, nil
}

func putFile(ctx context.Context, st BlobStore, cat Category, key, localPath, contentType string) (Object, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()
	return st.Put(ctx, cat, key, f, contentType)
}
