package services

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	domainprojects "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/projects"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/ctxutil"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/storage"
)

const DefaultMaxUploadBytes int64 = 50 << 20

// UploadFile is one part of a multipart upload.
type UploadFile struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type AssetService interface {
	Upload(dbc dbctx.Context, projectID uuid.UUID, assetType string, files []UploadFile) ([]*types.Asset, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Asset, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID, filter repos.AssetFilter) ([]*types.Asset, error)
	Open(dbc dbctx.Context, asset *types.Asset) (io.ReadCloser, error)
}

type assetService struct {
	db       *gorm.DB
	log      *logger.Logger
	assets   repos.AssetRepo
	projects repos.ProjectRepo
	stores   *storage.Stores
	maxBytes int64
}

func NewAssetService(
	db *gorm.DB,
	baseLog *logger.Logger,
	assets repos.AssetRepo,
	projects repos.ProjectRepo,
	stores *storage.Stores,
	maxBytes int64,
) AssetService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &assetService{
		db:       db,
		log:      baseLog.With("service", "AssetService"),
		assets:   assets,
		projects: projects,
		stores:   stores,
		maxBytes: maxBytes,
	}
}

// Upload stores every file in the primary blob store and registers them in one insert. Files
// already written are removed again when a later file or the insert fails.
func (s *assetService) Upload(dbc dbctx.Context, projectID uuid.UUID, assetType string, files []UploadFile) ([]*types.Asset, error) {
	at, err := domainprojects.ParseAssetType(assetType)
	if err != nil {
		return nil, apperr.Invalid("invalid_asset_type", "Unknown asset_type: %s. Valid: image, drawing2d, model3d", assetType)
	}
	if len(files) == 0 {
		return nil, apperr.Invalid("missing_files", "at least one file is required")
	}
	if err := requireProject(dbc, s.projects, projectID); err != nil {
		return nil, err
	}

	ctx := ctxutil.Default(dbc.Ctx)
	primary := s.stores.Primary
	var stored []storage.Object
	cleanup := func() {
		for _, obj := range stored {
			if err := primary.Delete(ctx, obj.Path); err != nil {
				s.log.Warn("remove orphaned upload failed", "path", obj.Path, "error", err)
			}
		}
	}

	out := make([]*types.Asset, 0, len(files))
	for _, f := range files {
		name := safeFilename(f.Filename)
		ct := f.ContentType
		if ct == "" {
			ct = contentTypeByName(name)
		}
		key := fmt.Sprintf("%s/%s_%s", projectID, strings.ReplaceAll(uuid.NewString(), "-", ""), name)
		obj, err := primary.Put(ctx, storage.CategoryUploads, key, io.LimitReader(f.Body, s.maxBytes+1), ct)
		if err != nil {
			cleanup()
			return nil, apperr.Internal("upload_store_failed", err)
		}
		stored = append(stored, obj)
		if obj.Size > s.maxBytes {
			cleanup()
			return nil, apperr.Invalid("file_too_large", "%s exceeds the upload limit of %d bytes", name, s.maxBytes)
		}
		out = append(out, &types.Asset{
			ProjectID:      projectID,
			AssetType:      at,
			Filename:       name,
			ContentType:    ct,
			SizeBytes:      obj.Size,
			StoragePath:    obj.Path,
			StorageBackend: obj.Backend,
		})
	}

	if err := s.assets.Create(dbc, out...); err != nil {
		cleanup()
		return nil, apperr.Internal("asset_create_failed", err)
	}
	s.log.Info("assets uploaded", "project_id", projectID, "asset_type", at, "count", len(out))
	return out, nil
}

func (s *assetService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Asset, error) {
	a, err := s.assets.GetByID(dbc, id)
	if err != nil {
		return nil, apperr.Internal("asset_lookup_failed", err)
	}
	if a == nil {
		return nil, apperr.NotFound("asset_not_found", "Asset not found")
	}
	return a, nil
}

func (s *assetService) ListByProject(dbc dbctx.Context, projectID uuid.UUID, filter repos.AssetFilter) ([]*types.Asset, error) {
	if filter.AssetType != "" {
		if _, err := domainprojects.ParseAssetType(string(filter.AssetType)); err != nil {
			return nil, apperr.Invalid("invalid_asset_type", "Unknown asset_type: %s", filter.AssetType)
		}
	}
	if err := requireProject(dbc, s.projects, projectID); err != nil {
		return nil, err
	}
	out, err := s.assets.ListByProject(dbc, projectID, filter)
	if err != nil {
		return nil, apperr.Internal("asset_list_failed", err)
	}
	return out, nil
}

// Open streams the asset's bytes from whichever backend holds them.
func (s *assetService) Open(dbc dbctx.Context, asset *types.Asset) (io.ReadCloser, error) {
	st, err := s.stores.ForBackend(asset.StorageBackend)
	if err != nil {
		return nil, apperr.Internal("asset_backend_unavailable", err)
	}
	rc, err := st.Open(ctxutil.Default(dbc.Ctx), asset.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("asset_file_missing", "Asset file not found")
	}
	if err != nil {
		return nil, apperr.Internal("asset_open_failed", err)
	}
	return rc, nil
}

func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "upload.bin"
	}
	return name
}

func contentTypeByName(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
