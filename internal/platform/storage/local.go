package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// LocalStore writes blobs under one root directory per category.
type LocalStore struct {
	log   *logger.Logger
	roots map[Category]string
}

var _ BlobStore = (*LocalStore)(nil)

func NewLocalStore(log *logger.Logger, uploadDir, outputDir string) (*LocalStore, error) {
	roots := map[Category]string{}
	for cat, dir := range map[Category]string{CategoryUploads: uploadDir, CategoryOutputs: outputDir} {
		if strings.TrimSpace(dir) == "" {
			return nil, fmt.Errorf("local storage dir for %s required", cat)
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", abs, err)
		}
		roots[cat] = abs
	}
	return &LocalStore{log: log.With("service", "LocalStore"), roots: roots}, nil
}

func (s *LocalStore) Backend() string { return ModeLocal }

func (s *LocalStore) Put(ctx context.Context, cat Category, key string, r io.Reader, contentType string) (Object, error) {
	root, ok := s.roots[cat]
	if !ok {
		return Object{}, fmt.Errorf("unknown storage category %q", cat)
	}
	key, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	dst := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return Object{}, err
	}
	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return Object{}, err
	}
	s.log.Debug("stored blob", "path", dst, "size", n)
	return Object{Backend: ModeLocal, Path: dst, Size: n, ContentType: contentType}, nil
}

func (s *LocalStore) PutFile(ctx context.Context, cat Category, key, localPath, contentType string) (Object, error) {
	return putFile(ctx, s, cat, key, localPath, contentType)
}

func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
