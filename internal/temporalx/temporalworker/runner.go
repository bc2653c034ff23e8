package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/temporalx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/temporalx/jobrun"
)

// Runner hosts the job_run workflow and its activities on the configured task queue.
type Runner struct {
	log         *logger.Logger
	tc          temporalsdkclient.Client
	exec        jobrun.JobExecutor
	cfg         temporalx.Config
	concurrency int
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, exec jobrun.JobExecutor, cfg temporalx.Config, concurrency int) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if exec == nil {
		return nil, fmt.Errorf("temporal worker missing executor")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		log:         log.With("component", "TemporalWorker"),
		tc:          tc,
		exec:        exec,
		cfg:         cfg,
		concurrency: concurrency,
	}, nil
}

// Run starts polling, retrying start-up failures until cfg.DialMaxWait, and blocks until ctx
// is done.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	deadline := time.Now().Add(r.cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			<-ctx.Done()
			w.Stop()
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}

		if time.Now().After(deadline) {
			if missingNamespace {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff(r.cfg.Backoff, r.cfg.BackoffMax, attempt)):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})
	acts := &jobrun.Activities{Log: r.log, Exec: r.exec}
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: jobrun.ActivityExecute})
	w.RegisterActivityWithOptions(acts.Abandon, activity.RegisterOptions{Name: jobrun.ActivityAbandon})
	return w
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	sleep := base
	for i := 1; i < attempt && sleep < max; i++ {
		sleep *= 2
	}
	if sleep > max {
		return max
	}
	return sleep
}
