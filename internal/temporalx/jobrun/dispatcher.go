package jobrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/queue"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
}

// Dispatcher starts one job_run workflow per task. The workflow ID is the job ID and reuse is
// rejected, so enqueueing the same job twice is harmless.
type Dispatcher struct {
	tc             workflowStarter
	taskQueue      string
	executeTimeout time.Duration
	log            *logger.Logger
}

var _ queue.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher starts workflows whose execute activity may run for executeTimeout, which
// must cover the slowest job type.
func NewDispatcher(tc temporalsdkclient.Client, taskQueue string, executeTimeout time.Duration, baseLog *logger.Logger) (*Dispatcher, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal not configured (TEMPORAL_ADDRESS)")
	}
	return newDispatcher(tc, taskQueue, executeTimeout, baseLog), nil
}

func newDispatcher(tc workflowStarter, taskQueue string, executeTimeout time.Duration, baseLog *logger.Logger) *Dispatcher {
	if executeTimeout <= 0 {
		executeTimeout = DefaultExecuteTimeout
	}
	return &Dispatcher{
		tc:             tc,
		taskQueue:      taskQueue,
		executeTimeout: executeTimeout,
		log:            baseLog.With("component", "TemporalDispatcher"),
	}
}

func (d *Dispatcher) Enqueue(ctx context.Context, task queue.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    task.JobID.String(),
		TaskQueue:             d.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	_, err := d.tc.ExecuteWorkflow(ctx, opts, WorkflowName, task.JobID.String(), d.executeTimeout)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			d.log.Debug("workflow already started", "job_id", task.JobID)
			return nil
		}
		return fmt.Errorf("start workflow %s: %w", task.JobID, err)
	}
	d.log.Debug("workflow started", "job_id", task.JobID, "task_queue", d.taskQueue)
	return nil
}
