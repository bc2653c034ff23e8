package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/data/repos"
	types "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain"
	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/dbctx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/ctxutil"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
)

/*
Context is the execution handle for one run of one job, and the only writer of the job row
after creation. Every lifecycle write is conditional on the current status, which is what makes
a redelivered task safe:
  - Start:     queued|running -> running   (zero rows: the job is terminal, ErrJobTerminal)
  - Progress:  running, never lowering progress
  - Fail:      queued|running -> failed
  - SucceedTx: running -> succeeded, inside the transaction that writes the artifacts
Pipelines never touch the job row directly.
*/
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *types.Job
	Repo   repos.JobRepo
	Notify services.JobNotifier
	Log    *logger.Logger

	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.Job, repo repos.JobRepo, notify services.JobNotifier, log *logger.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
		Log:    log,
	}
	if job != nil {
		c.Log = log.With("job_id", job.ID, "job_type", job.JobType, "project_id", job.ProjectID)
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Params) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Params, &m); err != nil || m == nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	payload := c.Payload()
	reqID := strings.TrimSpace(fmt.Sprint(payload["request_id"]))
	if reqID == "" || reqID == "<nil>" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{RequestID: reqID})
}

// Payload returns the decoded job params. Never nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) ProjectID() uuid.UUID {
	if c.Job == nil {
		return uuid.Nil
	}
	return c.Job.ProjectID
}

func (c *Context) dbc() dbctx.Context { return dbctx.Context{Ctx: c.Ctx} }

// Start claims the job for this execution: running, attempts+1, progress reset.
func (c *Context) Start() error {
	now := time.Now()
	ok, err := c.Repo.UpdateFieldsIfStatus(c.dbc(), c.Job.ID,
		[]domainjobs.Status{domainjobs.StatusQueued, domainjobs.StatusRunning},
		map[string]interface{}{
			"status":      domainjobs.StatusRunning,
			"stage":       "start",
			"progress":    0,
			"message":     "Running",
			"attempts":    gorm.Expr("attempts + 1"),
			"started_at":  now,
			"finished_at": nil,
			"updated_at":  now,
		})
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	if !ok {
		return ErrJobTerminal
	}
	c.Job.Status = domainjobs.StatusRunning
	c.Job.Stage = "start"
	c.Job.Progress = 0
	c.Job.Message = "Running"
	c.Job.Attempts++
	c.Job.StartedAt = &now
	c.Job.UpdatedAt = now
	return nil
}

/*
Progress records a non-terminal checkpoint. It is a hint: a rejected or failed write is logged
and otherwise ignored, and the in-memory job only follows writes that landed.
*/
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil {
		return
	}
	ok, err := c.Repo.UpdateProgress(c.dbc(), c.Job.ID, stage, pct, msg)
	if err != nil {
		c.Log.Warn("progress write failed", "stage", stage, "progress", pct, "error", err)
		return
	}
	if !ok {
		return
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.UpdatedAt = time.Now()

	if c.Notify != nil {
		c.Notify.JobProgress(c.Job, stage, pct, msg)
	}
}

/*
Fail marks the job failed with a human-readable message and an optional result payload
(diagnostics such as process output). A job that is already terminal is left alone and Fail
returns nil. Only a storage error is returned, wrapped as retryable.
*/
func (c *Context) Fail(stage string, msg string, result any) error {
	if c == nil || c.Job == nil {
		return nil
	}
	now := time.Now()
	res, err := encodeResult(result)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"status":      domainjobs.StatusFailed,
		"stage":       stage,
		"message":     msg,
		"finished_at": now,
		"updated_at":  now,
	}
	if res != nil {
		updates["result"] = res
	}
	ok, err := c.Repo.UpdateFieldsIfStatus(c.dbc(), c.Job.ID,
		[]domainjobs.Status{domainjobs.StatusQueued, domainjobs.StatusRunning}, updates)
	if err != nil {
		return Retryable(fmt.Errorf("fail job: %w", err))
	}
	if !ok {
		c.Log.Debug("fail skipped, job already terminal", "stage", stage)
		return nil
	}

	c.Job.Status = domainjobs.StatusFailed
	c.Job.Stage = stage
	c.Job.Message = msg
	c.Job.FinishedAt = &now
	c.Job.UpdatedAt = now
	if res != nil {
		c.Job.Result = res
	}
	c.Log.Info("job failed", "stage", stage, "message", msg)
	if c.Notify != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
	return nil
}

// Failf is Fail without a result payload.
func (c *Context) Failf(stage string, format string, args ...any) error {
	return c.Fail(stage, fmt.Sprintf(format, args...), nil)
}

/*
SucceedTx writes the terminal succeeded state through tx. It must run in the same transaction
as the artifact writes of this execution; ErrJobNotRunning means another execution already
finalized the job and the caller must roll back.

The in-memory job and the notifier are only updated by Commit, after the transaction commits.
*/
func (c *Context) SucceedTx(tx *gorm.DB, stage string, msg string, result any) error {
	res, err := encodeResult(result)
	if err != nil {
		return err
	}
	now := time.Now()
	ok, err := c.Repo.UpdateFieldsIfStatus(dbctx.Context{Ctx: c.Ctx, Tx: tx}, c.Job.ID,
		[]domainjobs.Status{domainjobs.StatusRunning},
		map[string]interface{}{
			"status":      domainjobs.StatusSucceeded,
			"stage":       stage,
			"progress":    100,
			"message":     msg,
			"result":      res,
			"finished_at": now,
			"updated_at":  now,
		})
	if err != nil {
		return fmt.Errorf("succeed job: %w", err)
	}
	if !ok {
		return ErrJobNotRunning
	}
	return nil
}

// Outcome is what a Commit callback reports for the succeeded job.
type Outcome struct {
	Message string
	Result  any
}

/*
Commit runs fn and the succeeded transition in one database transaction: either every artifact
fn wrote and the terminal state are committed, or none of them are.

fn errors are returned unchanged so the handler can classify them. ErrJobNotRunning is returned
when the job left running before the commit. Transaction infrastructure errors come back
retryable.
*/
func (c *Context) Commit(stage string, fn func(tx *gorm.DB) (Outcome, error)) error {
	var out Outcome
	var fnErr error
	err := c.DB.WithContext(c.Ctx).Transaction(func(tx *gorm.DB) error {
		out, fnErr = fn(tx)
		if fnErr != nil {
			return fnErr
		}
		return c.SucceedTx(tx, stage, out.Message, out.Result)
	})
	switch {
	case fnErr != nil:
		return fnErr
	case errors.Is(err, ErrJobNotRunning):
		c.Log.Warn("discarding execution, job left running before commit", "stage", stage)
		return ErrJobNotRunning
	case err != nil:
		return Retryable(fmt.Errorf("commit %s: %w", stage, err))
	}

	now := time.Now()
	res, _ := encodeResult(out.Result)
	c.Job.Status = domainjobs.StatusSucceeded
	c.Job.Stage = stage
	c.Job.Progress = 100
	c.Job.Message = out.Message
	c.Job.Result = res
	c.Job.FinishedAt = &now
	c.Job.UpdatedAt = now
	c.Log.Info("job succeeded", "stage", stage, "message", out.Message)
	if c.Notify != nil {
		c.Notify.JobDone(c.Job)
	}
	return nil
}

func encodeResult(result any) (datatypes.JSON, error) {
	if result == nil {
		return nil, nil
	}
	if raw, ok := result.(datatypes.JSON); ok {
		return raw, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode job result: %w", err)
	}
	return datatypes.JSON(b), nil
}
