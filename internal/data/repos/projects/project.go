package projects

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, p *types.Project) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
	List(dbc dbctx.Context) ([]*types.Project, error)
	Exists(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) Create(dbc dbctx.Context, p *types.Project) error {
	if p == nil {
		return errors.New("nil project")
	}
	return dbc.Resolve(r.db).Create(p).Error
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	var p types.Project
	if err := dbc.Resolve(r.db).Where("id = ?", id).Limit(1).Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (r *projectRepo) List(dbc dbctx.Context) ([]*types.Project, error) {
	var out []*types.Project
	if err := dbc.Resolve(r.db).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *projectRepo) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	var n int64
	if err := dbc.Resolve(r.db).Model(&types.Project{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

type ScaleReferenceRepo interface {
	// Replace deletes any reference the project has and inserts sr, in one transaction.
	Replace(dbc dbctx.Context, sr *types.ScaleReference) error
	GetByProject(dbc dbctx.Context, projectID uuid.UUID) (*types.ScaleReference, error)
}

type scaleReferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScaleReferenceRepo(db *gorm.DB, baseLog *logger.Logger) ScaleReferenceRepo {
	return &scaleReferenceRepo{db: db, log: baseLog.With("repo", "ScaleReferenceRepo")}
}

func (r *scaleReferenceRepo) Replace(dbc dbctx.Context, sr *types.ScaleReference) error {
	if sr == nil || sr.ProjectID == uuid.Nil {
		return errors.New("scale reference requires project_id")
	}
	return dbc.Resolve(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", sr.ProjectID).Delete(&types.ScaleReference{}).Error; err != nil {
			return err
		}
		sr.ID = uuid.Nil
		return tx.Create(sr).Error
	})
}

func (r *scaleReferenceRepo) GetByProject(dbc dbctx.Context, projectID uuid.UUID) (*types.ScaleReference, error) {
	var sr types.ScaleReference
	if err := dbc.Resolve(r.db).Where("project_id = ?", projectID).Limit(1).Find(&sr).Error; err != nil {
		return nil, err
	}
	if sr.ID == uuid.Nil {
		return nil, nil
	}
	return &sr, nil
}
