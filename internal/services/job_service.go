package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/queue"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/apperr"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/ctxutil"
)

type CreateJobInput struct {
	ProjectID uuid.UUID
	JobType   string
	Params    map[string]any
}

type JobService interface {
	Create(dbc dbctx.Context, in CreateJobInput) (*types.Job, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Job, error)
	List(dbc dbctx.Context, filter repos.JobFilter) ([]*types.Job, error)
}

type jobService struct {
	db       *gorm.DB
	log      *logger.Logger
	jobs     repos.JobRepo
	projects repos.ProjectRepo
	notify   JobNotifier
	dispatch queue.Dispatcher
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	jobs repos.JobRepo,
	projects repos.ProjectRepo,
	notify JobNotifier,
	dispatch queue.Dispatcher,
) JobService {
	return &jobService{
		db:       db,
		log:      baseLog.With("service", "JobService"),
		jobs:     jobs,
		projects: projects,
		notify:   notify,
		dispatch: dispatch,
	}
}

// Create writes a queued job and hands it to the dispatcher. The job type is checked before
// anything is written, so an unknown type never leaves a row behind. If the dispatcher refuses
// the task the row is marked failed at stage "dispatch" and the error is returned.
func (s *jobService) Create(dbc dbctx.Context, in CreateJobInput) (*types.Job, error) {
	jobType, err := domainjobs.ParseJobType(in.JobType)
	if err != nil {
		return nil, apperr.Invalid("invalid_job_type", "Unknown job_type: %s", in.JobType)
	}
	if err := requireProject(dbc, s.projects, in.ProjectID); err != nil {
		return nil, err
	}

	params := in.Params
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, apperr.Invalid("invalid_params", "params must be a JSON object: %v", err)
	}

	job := &types.Job{
		ProjectID: in.ProjectID,
		JobType:   jobType,
		Status:    domainjobs.StatusQueued,
		Stage:     "queued",
		Message:   "Queued",
		Params:    datatypes.JSON(raw),
	}
	if err := s.jobs.Create(dbc, job); err != nil {
		return nil, apperr.Internal("job_create_failed", err)
	}
	s.notify.JobCreated(job)

	task := queue.Task{
		Type:       job.JobType,
		JobID:      job.ID,
		ProjectID:  job.ProjectID,
		Params:     json.RawMessage(raw),
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.dispatch.Enqueue(ctxutil.Default(dbc.Ctx), task); err != nil {
		s.log.Error("enqueue failed", "job_id", job.ID, "job_type", job.JobType, "error", err)
		s.markDispatchFailed(dbc, job, err)
		return job, apperr.Internal("enqueue_failed", fmt.Errorf("enqueue job %s: %w", job.ID, err))
	}

	s.log.Info("job queued", "job_id", job.ID, "job_type", job.JobType, "project_id", job.ProjectID)
	return job, nil
}

func (s *jobService) markDispatchFailed(dbc dbctx.Context, job *types.Job, cause error) {
	now := time.Now().UTC()
	msg := fmt.Sprintf("Failed to enqueue job: %v", cause)
	updated, err := s.jobs.UpdateFieldsIfStatus(dbc, job.ID, []domainjobs.Status{domainjobs.StatusQueued}, map[string]interface{}{
		"status":      domainjobs.StatusFailed,
		"stage":       "dispatch",
		"message":     msg,
		"finished_at": now,
		"updated_at":  now,
	})
	if err != nil {
		s.log.Warn("mark dispatch failure failed", "job_id", job.ID, "error", err)
		return
	}
	if !updated {
		return
	}
	job.Status = domainjobs.StatusFailed
	job.Stage = "dispatch"
	job.Message = msg
	job.FinishedAt = &now
	s.notify.JobFailed(job, "dispatch", msg)
}

func (s *jobService) Get(dbc dbctx.Context, id uuid.UUID) (*types.Job, error) {
	job, err := s.jobs.GetByID(dbc, id)
	if err != nil {
		return nil, apperr.Internal("job_lookup_failed", err)
	}
	if job == nil {
		return nil, apperr.NotFound("job_not_found", "Job not found")
	}
	return job, nil
}

func (s *jobService) List(dbc dbctx.Context, filter repos.JobFilter) ([]*types.Job, error) {
	if filter.Status != "" {
		if _, ok := domainjobs.ParseStatus(string(filter.Status)); !ok {
			return nil, apperr.Invalid("invalid_status", "Unknown status: %s", filter.Status)
		}
	}
	if filter.JobType != "" && !filter.JobType.Valid() {
		return nil, apperr.Invalid("invalid_job_type", "Unknown job_type: %s", filter.JobType)
	}
	out, err := s.jobs.List(dbc, filter)
	if err != nil {
		return nil, apperr.Internal("job_list_failed", err)
	}
	return out, nil
}
