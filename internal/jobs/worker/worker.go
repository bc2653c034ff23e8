package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/queue"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

const (
	DefaultConcurrency  = 4
	DefaultPollWait     = 2 * time.Second
	DefaultReapInterval = 15 * time.Second
	DefaultRetryDelay   = 30 * time.Second

	receiveBackoff = time.Second
)

// Executor runs the job behind one delivery. A non-nil error asks for redelivery.
type Executor interface {
	Execute(ctx context.Context, jobID uuid.UUID) error
}

type Config struct {
	Concurrency  int           `yaml:"concurrency"`
	PollWait     time.Duration `yaml:"poll_wait"`
	ReapInterval time.Duration `yaml:"reap_interval"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	if c.PollWait <= 0 {
		c.PollWait = DefaultPollWait
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = DefaultReapInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// Worker pulls tasks off a queue consumer and hands them to the executor.
type Worker struct {
	log      *logger.Logger
	consumer queue.Consumer
	exec     Executor
	metrics  *observability.Metrics
	cfg      Config
}

func NewWorker(baseLog *logger.Logger, consumer queue.Consumer, exec Executor, metrics *observability.Metrics, cfg Config) *Worker {
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		consumer: consumer,
		exec:     exec,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}
}

// Run blocks until ctx is cancelled or the queue is closed. A task already handed to a loop
// is finished (or left for redelivery) before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.runLoop(gctx, workerID)
			return nil
		})
	}
	g.Go(func() error {
		w.reapLoop(gctx)
		return nil
	})
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		}
		d, err := w.consumer.Receive(ctx, w.cfg.PollWait)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				w.log.Info("Worker loop stopped", "worker_id", workerID)
				return
			}
			w.log.Warn("Receive failed", "worker_id", workerID, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(receiveBackoff):
			}
			continue
		}
		if d == nil {
			continue
		}
		w.handle(ctx, workerID, d)
	}
}

func (w *Worker) handle(ctx context.Context, workerID int, d *queue.Delivery) {
	log := w.log.With("worker_id", workerID, "job_id", d.Task.JobID, "job_type", d.Task.Type)
	if err := w.exec.Execute(ctx, d.Task.JobID); err != nil {
		log.Warn("Job left for redelivery", "error", err)
		if n, ok := w.consumer.(queue.Nacker); ok && ctx.Err() == nil {
			if err := n.Nack(ctx, d, w.cfg.RetryDelay); err != nil {
				log.Warn("Nack failed", "error", err)
			}
		}
		return
	}
	// The job row is final; the ack must land even while shutting down.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.consumer.Ack(ackCtx, d); err != nil {
		log.Warn("Ack failed, task will be redelivered", "error", err)
	}
}

func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.consumer.RequeueExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Warn("RequeueExpired failed", "error", err)
				}
				continue
			}
			w.metrics.QueueRequeued(n)
		}
	}
}
