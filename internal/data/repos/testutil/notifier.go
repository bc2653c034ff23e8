package testutil

import (
	"sync"

	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
)

// RecordingNotifier collects job events in memory. It satisfies services.JobNotifier.
type RecordingNotifier struct {
	mu     sync.Mutex
	Events []domainjobs.Event
}

func (n *RecordingNotifier) record(ev domainjobs.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, ev)
}

func (n *RecordingNotifier) JobCreated(job *domainjobs.Job) {
	n.record(domainjobs.NewEvent(domainjobs.EventCreated, job))
}

func (n *RecordingNotifier) JobProgress(job *domainjobs.Job, stage string, progress int, message string) {
	ev := domainjobs.NewEvent(domainjobs.EventProgress, job)
	ev.Stage, ev.Progress, ev.Message = stage, progress, message
	n.record(ev)
}

func (n *RecordingNotifier) JobFailed(job *domainjobs.Job, stage string, message string) {
	ev := domainjobs.NewEvent(domainjobs.EventFailed, job)
	ev.Stage, ev.Message = stage, message
	n.record(ev)
}

func (n *RecordingNotifier) JobDone(job *domainjobs.Job) {
	n.record(domainjobs.NewEvent(domainjobs.EventSucceeded, job))
}

// Kinds returns the recorded event kinds in order.
func (n *RecordingNotifier) Kinds() []domainjobs.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domainjobs.EventKind, 0, len(n.Events))
	for _, ev := range n.Events {
		out = append(out, ev.Kind)
	}
	return out
}
