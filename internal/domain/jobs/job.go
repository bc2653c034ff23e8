package jobs

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobType string

const (
	JobTypeExtract        JobType = "extract"
	JobTypeGenerateScript JobType = "generate_script"
	JobTypeRunBlender     JobType = "run_blender"
)

// JobTypes lists every job type the pipeline can execute, in pipeline order.
var JobTypes = []JobType{JobTypeExtract, JobTypeGenerateScript, JobTypeRunBlender}

var ErrUnknownJobType = errors.New("unknown job_type")

func ParseJobType(raw string) (JobType, error) {
	t := JobType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", ErrUnknownJobType
	}
	return t, nil
}

func (t JobType) Valid() bool {
	for _, known := range JobTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed:
		return s, true
	}
	return "", false
}

type Job struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	JobType    JobType        `gorm:"column:job_type;not null;index" json:"job_type"`
	Status     Status         `gorm:"column:status;not null;index" json:"status"`
	Stage      string         `gorm:"column:stage;not null;default:''" json:"stage"`
	Progress   int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Message    string         `gorm:"column:message" json:"message"`
	Attempts   int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Params     datatypes.JSON `gorm:"column:params" json:"params"`
	Result     datatypes.JSON `gorm:"column:result" json:"result"`
	StartedAt  *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (Job) TableName() string { return "job" }

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
