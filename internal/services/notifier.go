package services

import (
	"context"
	"time"

	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// =========================
// Job notifier
// =========================

type JobNotifier interface {
	JobCreated(job *domainjobs.Job)
	JobProgress(job *domainjobs.Job, stage string, progress int, message string)
	JobFailed(job *domainjobs.Job, stage string, message string)
	JobDone(job *domainjobs.Job)
}

// JobEventPublisher fans job events out to subscribers (redis pub/sub in production).
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, ev domainjobs.Event) error
}

type jobNotifier struct {
	log *logger.Logger
	pub JobEventPublisher
}

// NewJobNotifier logs every transition and, when pub is non-nil, publishes it. Publishing is best
// effort: the job row stays the source of truth for pollers.
func NewJobNotifier(baseLog *logger.Logger, pub JobEventPublisher) JobNotifier {
	return &jobNotifier{log: baseLog.With("service", "JobNotifier"), pub: pub}
}

func (n *jobNotifier) JobCreated(job *domainjobs.Job) {
	n.emit(domainjobs.NewEvent(domainjobs.EventCreated, job))
}

func (n *jobNotifier) JobProgress(job *domainjobs.Job, stage string, progress int, message string) {
	ev := domainjobs.NewEvent(domainjobs.EventProgress, job)
	ev.Stage, ev.Progress, ev.Message = stage, progress, message
	n.emit(ev)
}

func (n *jobNotifier) JobFailed(job *domainjobs.Job, stage string, message string) {
	ev := domainjobs.NewEvent(domainjobs.EventFailed, job)
	ev.Status, ev.Stage, ev.Message = domainjobs.StatusFailed, stage, message
	n.emit(ev)
}

func (n *jobNotifier) JobDone(job *domainjobs.Job) {
	ev := domainjobs.NewEvent(domainjobs.EventSucceeded, job)
	ev.Status, ev.Progress = domainjobs.StatusSucceeded, 100
	n.emit(ev)
}

func (n *jobNotifier) emit(ev domainjobs.Event) {
	if n == nil {
		return
	}
	n.log.Info("job event",
		"event", ev.Kind,
		"job_id", ev.JobID,
		"job_type", ev.JobType,
		"stage", ev.Stage,
		"progress", ev.Progress,
		"message", ev.Message,
	)
	if n.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.pub.PublishJobEvent(ctx, ev); err != nil {
		n.log.Warn("publish job event failed", "job_id", ev.JobID, "error", err)
	}
}
