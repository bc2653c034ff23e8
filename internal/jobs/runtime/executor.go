package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

const DefaultMaxAttempts = 5

/*
Executor runs one delivered task against its job row. It is shared by the queue worker and the
Temporal activity, so both backends get the same guarantees:
  - a missing or terminal job is a no-op (redelivery is safe)
  - a job that keeps crashing is failed once attempts exceed MaxAttempts
  - handler panics become failed jobs (stage "panic")
  - a Retryable handler error leaves the job running and is returned for redelivery
*/
type Executor struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRepo
	registry *Registry
	notify   services.JobNotifier
	metrics  *observability.Metrics
	tracer   trace.Tracer

	MaxAttempts int
}

func NewExecutor(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRepo, registry *Registry, notify services.JobNotifier, metrics *observability.Metrics) *Executor {
	return &Executor{
		db:          db,
		log:         baseLog.With("component", "JobExecutor"),
		repo:        repo,
		registry:    registry,
		notify:      notify,
		metrics:     metrics,
		tracer:      observability.Tracer(),
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Execute returns nil when the delivery is done with (including jobs that ended up failed) and
// an error only when the task should be delivered again.
func (e *Executor) Execute(ctx context.Context, jobID uuid.UUID) (err error) {
	ctx, span := e.tracer.Start(ctx, "job.execute", trace.WithAttributes(attribute.String("job.id", jobID.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	job, err := e.repo.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return Retryable(fmt.Errorf("load job %s: %w", jobID, err))
	}
	if job == nil {
		e.log.Warn("task for unknown job dropped", "job_id", jobID)
		return nil
	}
	span.SetAttributes(
		attribute.String("job.type", string(job.JobType)),
		attribute.String("project.id", job.ProjectID.String()),
	)
	if job.Status.Terminal() {
		e.log.Debug("job already terminal, skipping redelivery", "job_id", jobID, "status", job.Status)
		return nil
	}

	jc := NewContext(ctx, e.db, job, e.repo, e.notify, e.log)

	h, ok := e.registry.Get(job.JobType)
	if !ok {
		e.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		return jc.Fail("dispatch", (&missingHandlerError{JobType: string(job.JobType)}).Error(), nil)
	}

	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if job.Attempts >= maxAttempts {
		return jc.Fail("dispatch", fmt.Sprintf("Job abandoned after %d attempts", job.Attempts), nil)
	}

	if err := jc.Start(); err != nil {
		if errors.Is(err, ErrJobTerminal) {
			return nil
		}
		return Retryable(err)
	}

	started := time.Now()
	e.metrics.JobStarted(string(job.JobType))

	runErr := e.run(h, jc)
	switch {
	case runErr == nil, errors.Is(runErr, ErrJobNotRunning), errors.Is(runErr, ErrJobTerminal):
	case IsRetryable(runErr):
		e.log.Warn("job execution interrupted, leaving for redelivery", "job_id", job.ID, "error", runErr)
		return runErr
	default:
		// Most pipelines call jc.Fail themselves; this is a safety net.
		stage := "run"
		var pe *panicError
		if errors.As(runErr, &pe) {
			stage = "panic"
		}
		if err := jc.Fail(stage, runErr.Error(), nil); err != nil {
			return err
		}
	}

	if jc.Job.Status.Terminal() {
		e.metrics.JobFinished(string(job.JobType), string(jc.Job.Status), time.Since(started))
		span.SetAttributes(attribute.String("job.status", string(jc.Job.Status)))
	}
	return nil
}

func (e *Executor) run(h Handler, jc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Job handler panic",
				"job_id", jc.Job.ID,
				"job_type", jc.Job.JobType,
				"panic", r,
			)
			err = errFromRecover(r)
		}
	}()
	return h.Run(jc)
}

// Abandon fails a job whose deliveries were exhausted by the transport (Temporal retry policy).
func (e *Executor) Abandon(ctx context.Context, jobID uuid.UUID, reason string) error {
	job, err := e.repo.GetByID(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return Retryable(err)
	}
	if job == nil || job.Status.Terminal() {
		return nil
	}
	jc := NewContext(ctx, e.db, job, e.repo, e.notify, e.log)
	return jc.Fail("dispatch", reason, nil)
}
