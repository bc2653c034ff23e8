package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

type JobFilter struct {
	ProjectID *uuid.UUID
	Status    domainjobs.Status
	JobType   domainjobs.JobType
	Limit     int
}

type JobRepo interface {
	Create(dbc dbctx.Context, job *types.Job) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error)
	List(dbc dbctx.Context, filter JobFilter) ([]*types.Job, error)
	// UpdateFieldsIfStatus applies updates only while the row is in one of allowed. The bool
	// reports whether a row was changed; false means another writer already moved the job on.
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []domainjobs.Status, updates map[string]interface{}) (bool, error)
	// UpdateProgress writes a non-terminal checkpoint for a running job without lowering progress.
	UpdateProgress(dbc dbctx.Context, id uuid.UUID, stage string, pct int, msg string) (bool, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{
		db:  db,
		log: baseLog.With("repo", "JobRepo"),
	}
}

func (r *jobRepo) Create(dbc dbctx.Context, job *types.Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	return dbc.Resolve(r.db).Create(job).Error
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.Job
	err := dbc.Resolve(r.db).Where("id = ?", id).Limit(1).Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRepo) List(dbc dbctx.Context, filter JobFilter) ([]*types.Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	q := dbc.Resolve(r.db).Model(&types.Job{})
	if filter.ProjectID != nil && *filter.ProjectID != uuid.Nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.JobType != "" {
		q = q.Where("job_type = ?", filter.JobType)
	}
	var out []*types.Job
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []domainjobs.Status, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || len(allowed) == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := dbc.Resolve(r.db).
		Model(&types.Job{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepo) UpdateProgress(dbc dbctx.Context, id uuid.UUID, stage string, pct int, msg string) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	res := dbc.Resolve(r.db).
		Model(&types.Job{}).
		Where("id = ? AND status = ? AND progress <= ?", id, domainjobs.StatusRunning, pct).
		Updates(map[string]interface{}{
			"stage":      stage,
			"progress":   pct,
			"message":    msg,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
