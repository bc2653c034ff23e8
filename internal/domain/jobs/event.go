package jobs

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventCreated   EventKind = "job_created"
	EventProgress  EventKind = "job_progress"
	EventFailed    EventKind = "job_failed"
	EventSucceeded EventKind = "job_succeeded"
)

// Event is the wire shape published to job subscribers.
type Event struct {
	Kind      EventKind `json:"event"`
	JobID     uuid.UUID `json:"job_id"`
	ProjectID uuid.UUID `json:"project_id"`
	JobType   JobType   `json:"job_type"`
	Status    Status    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

func NewEvent(kind EventKind, job *Job) Event {
	ev := Event{Kind: kind, At: time.Now().UTC()}
	if job != nil {
		ev.JobID = job.ID
		ev.ProjectID = job.ProjectID
		ev.JobType = job.JobType
		ev.Status = job.Status
		ev.Stage = job.Stage
		ev.Progress = job.Progress
		ev.Message = job.Message
	}
	return ev
}

// Channel is the pub/sub channel carrying events for one project.
func Channel(projectID uuid.UUID) string {
	return "jobs:" + projectID.String()
}
