package projects

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type AssetFilter struct {
	AssetType types.AssetType
	JobID     *uuid.UUID
}

type AssetRepo interface {
	Create(dbc dbctx.Context, assets ...*types.Asset) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Asset, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID, filter AssetFilter) ([]*types.Asset, error)
}

type assetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return &assetRepo{db: db, log: baseLog.With("repo", "AssetRepo")}
}

func (r *assetRepo) Create(dbc dbctx.Context, assets ...*types.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	for _, a := range assets {
		if a == nil || a.ProjectID == uuid.Nil {
			return errors.New("asset requires project_id")
		}
	}
	return dbc.Resolve(r.db).Create(&assets).Error
}

func (r *assetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Asset, error) {
	var a types.Asset
	if err := dbc.Resolve(r.db).Where("id = ?", id).Limit(1).Find(&a).Error; err != nil {
		return nil, err
	}
	if a.ID == uuid.Nil {
		return nil, nil
	}
	return &a, nil
}

func (r *assetRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID, filter AssetFilter) ([]*types.Asset, error) {
	q := dbc.Resolve(r.db).Where("project_id = ?", projectID)
	if filter.AssetType != "" {
		q = q.Where("asset_type = ?", filter.AssetType)
	}
	if filter.JobID != nil {
		q = q.Where("job_id = ?", *filter.JobID)
	}
	var out []*types.Asset
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
