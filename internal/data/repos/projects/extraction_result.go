package projects

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// ExtractionResultRepo is append-only: there is no update or delete.
type ExtractionResultRepo interface {
	Create(dbc dbctx.Context, er *types.ExtractionResult) error
	CreateNextVersion(dbc dbctx.Context, er *types.ExtractionResult) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ExtractionResult, error)
	GetLatest(dbc dbctx.Context, projectID uuid.UUID) (*types.ExtractionResult, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ExtractionResult, error)
}

type extractionResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExtractionResultRepo(db *gorm.DB, baseLog *logger.Logger) ExtractionResultRepo {
	return &extractionResultRepo{db: db, log: baseLog.With("repo", "ExtractionResultRepo")}
}

func (r *extractionResultRepo) Create(dbc dbctx.Context, er *types.ExtractionResult) error {
	return createExactVersion(dbc, r.db, er)
}

func (r *extractionResultRepo) CreateNextVersion(dbc dbctx.Context, er *types.ExtractionResult) error {
	if err := createNextVersion(dbc, r.db, er.ProjectID, er); err != nil {
		return err
	}
	r.log.Debug("Extraction result created", "project_id", er.ProjectID, "version", er.Version)
	return nil
}

func (r *extractionResultRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ExtractionResult, error) {
	var er types.ExtractionResult
	if err := dbc.Resolve(r.db).Where("id = ?", id).Limit(1).Find(&er).Error; err != nil {
		return nil, err
	}
	if er.ID == uuid.Nil {
		return nil, nil
	}
	return &er, nil
}

func (r *extractionResultRepo) GetLatest(dbc dbctx.Context, projectID uuid.UUID) (*types.ExtractionResult, error) {
	var er types.ExtractionResult
	err := dbc.Resolve(r.db).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Limit(1).
		Find(&er).Error
	if err != nil {
		return nil, err
	}
	if er.ID == uuid.Nil {
		return nil, nil
	}
	return &er, nil
}

func (r *extractionResultRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ExtractionResult, error) {
	var out []*types.ExtractionResult
	err := dbc.Resolve(r.db).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
