package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
)

const (
	BackendRedis    = "redis"
	BackendMemory   = "memory"
	BackendTemporal = "temporal"

	DefaultName              = "default"
	DefaultPrefix            = "jobs"
	DefaultVisibilityTimeout = 10 * time.Minute
)

var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)

// Task binds one queued unit of work to exactly one Job row through JobID.
type Task struct {
	Type       domainjobs.JobType `json:"type"`
	JobID      uuid.UUID          `json:"job_id"`
	ProjectID  uuid.UUID          `json:"project_id"`
	Params     json.RawMessage    `json:"params,omitempty"`
	EnqueuedAt time.Time          `json:"enqueued_at"`
}

func (t Task) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", domainjobs.ErrUnknownJobType, t.Type)
	}
	if t.JobID == uuid.Nil {
		return errors.New("task job_id required")
	}
	return nil
}

// Dispatcher schedules a task and returns without waiting for it to run.
type Dispatcher interface {
	Enqueue(ctx context.Context, task Task) error
}

// Delivery is one received task. It stays owned by the consumer until Ack; an unacked delivery
// is handed out again once its lease expires.
type Delivery struct {
	Task       Task
	Deadline   time.Time
	raw        string
	receivedAt time.Time
}

func (d *Delivery) ReceivedAt() time.Time { return d.receivedAt }

// Consumer is the worker side of a queue backend.
type Consumer interface {
	// Receive blocks up to wait for a task. A nil delivery with nil error means nothing arrived.
	Receive(ctx context.Context, wait time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// RequeueExpired hands deliveries whose lease ran out back to the queue.
	RequeueExpired(ctx context.Context) (int, error)
}

// Nacker is implemented by consumers that can hand a delivery back before its lease runs out.
type Nacker interface {
	Nack(ctx context.Context, d *Delivery, delay time.Duration) error
}

type Config struct {
	Backend           string        `yaml:"backend"`
	Name              string        `yaml:"name"`
	Prefix            string        `yaml:"prefix"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	ReapInterval      time.Duration `yaml:"reap_interval"`
}

func (c Config) withDefaults() Config {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendRedis
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultName
	}
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = DefaultPrefix
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = DefaultVisibilityTimeout
	}
	return c
}

func encodeTask(t Task) (string, error) {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now().UTC()
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTask(raw string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}
