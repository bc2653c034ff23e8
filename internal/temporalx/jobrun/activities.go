package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// JobExecutor is the part of the job runtime the activities need.
type JobExecutor interface {
	Execute(ctx context.Context, jobID uuid.UUID) error
	Abandon(ctx context.Context, jobID uuid.UUID, reason string) error
}

type Activities struct {
	Log  *logger.Logger
	Exec JobExecutor

	HeartbeatEvery time.Duration
}

// Execute runs the job once. A returned error means "deliver again" and is retried by the
// workflow's retry policy.
func (a *Activities) Execute(ctx context.Context, jobID string) error {
	id, err := a.parse(jobID)
	if err != nil {
		return err
	}
	stop := a.startHeartbeat(ctx)
	defer stop()
	return a.Exec.Execute(ctx, id)
}

func (a *Activities) Abandon(ctx context.Context, jobID string, reason string) error {
	id, err := a.parse(jobID)
	if err != nil {
		return err
	}
	if a.Log != nil {
		a.Log.Warn("abandoning job", "job_id", id, "reason", reason)
	}
	return a.Exec.Abandon(ctx, id, reason)
}

func (a *Activities) parse(jobID string) (uuid.UUID, error) {
	if a == nil || a.Exec == nil {
		return uuid.Nil, temporal.NewNonRetryableApplicationError("jobrun: activity not configured", "config", nil)
	}
	id, err := uuid.Parse(strings.TrimSpace(jobID))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, temporal.NewNonRetryableApplicationError(fmt.Sprintf("jobrun: invalid job_id %q", jobID), "invalid_job_id", err)
	}
	return id, nil
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	every := a.HeartbeatEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
