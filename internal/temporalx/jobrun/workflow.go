package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow drives one job row to a terminal status. The workflow ID is the job ID, so a job
// can be started at most once. executeTimeout bounds one execute attempt; zero means
// DefaultExecuteTimeout.
func Workflow(ctx workflow.Context, jobID string, executeTimeout time.Duration) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		jobID = strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	}
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	if executeTimeout <= 0 {
		executeTimeout = DefaultExecuteTimeout
	}
	execCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: executeTimeout,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    InitialRetryDelay,
			BackoffCoefficient: 2.0,
			MaximumInterval:    MaxRetryDelay,
			MaximumAttempts:    MaxAttempts,
		},
	})
	err := workflow.ExecuteActivity(execCtx, ActivityExecute, jobID).Get(ctx, nil)
	if err == nil {
		return nil
	}

	workflow.GetLogger(ctx).Warn("job deliveries exhausted", "job_id", jobID, "error", err)
	abandonCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 10,
		},
	})
	reason := fmt.Sprintf("Job abandoned after %d attempts", MaxAttempts)
	if aerr := workflow.ExecuteActivity(abandonCtx, ActivityAbandon, jobID, reason).Get(ctx, nil); aerr != nil {
		return fmt.Errorf("abandon job %s: %w", jobID, aerr)
	}
	return fmt.Errorf("job %s abandoned: %w", jobID, err)
}
