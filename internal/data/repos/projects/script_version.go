package projects

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// ScriptVersionRepo is append-only: there is no update or delete.
type ScriptVersionRepo interface {
	Create(dbc dbctx.Context, sv *types.ScriptVersion) error
	CreateNextVersion(dbc dbctx.Context, sv *types.ScriptVersion) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ScriptVersion, error)
	GetLatest(dbc dbctx.Context, projectID uuid.UUID) (*types.ScriptVersion, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ScriptVersion, error)
}

type scriptVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScriptVersionRepo(db *gorm.DB, baseLog *logger.Logger) ScriptVersionRepo {
	return &scriptVersionRepo{db: db, log: baseLog.With("repo", "ScriptVersionRepo")}
}

func (r *scriptVersionRepo) Create(dbc dbctx.Context, sv *types.ScriptVersion) error {
	return createExactVersion(dbc, r.db, sv)
}

func (r *scriptVersionRepo) CreateNextVersion(dbc dbctx.Context, sv *types.ScriptVersion) error {
	if err := createNextVersion(dbc, r.db, sv.ProjectID, sv); err != nil {
		return err
	}
	r.log.Debug("Script version created", "project_id", sv.ProjectID, "version", sv.Version)
	return nil
}

func (r *scriptVersionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ScriptVersion, error) {
	var sv types.ScriptVersion
	if err := dbc.Resolve(r.db).Where("id = ?", id).Limit(1).Find(&sv).Error; err != nil {
		return nil, err
	}
	if sv.ID == uuid.Nil {
		return nil, nil
	}
	return &sv, nil
}

func (r *scriptVersionRepo) GetLatest(dbc dbctx.Context, projectID uuid.UUID) (*types.ScriptVersion, error) {
	var sv types.ScriptVersion
	err := dbc.Resolve(r.db).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Limit(1).
		Find(&sv).Error
	if err != nil {
		return nil, err
	}
	if sv.ID == uuid.Nil {
		return nil, nil
	}
	return &sv, nil
}

func (r *scriptVersionRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.ScriptVersion, error) {
	var out []*types.ScriptVersion
	err := dbc.Resolve(r.db).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
