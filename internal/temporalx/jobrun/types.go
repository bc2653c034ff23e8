package jobrun

import (
	"time"

	jobrt "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/runtime"
)

const (
	WorkflowName    = "job_run"
	ActivityExecute = "job_run_execute"
	ActivityAbandon = "job_run_abandon"

	DefaultExecuteTimeout = 30 * time.Minute
)

// Retry policy of the execute activity. MaxAttempts matches the executor's own cap so a job
// abandoned by Temporal and one abandoned by the executor read the same.
var (
	MaxAttempts       = int32(jobrt.DefaultMaxAttempts)
	InitialRetryDelay = 5 * time.Second
	MaxRetryDelay     = time.Minute
)
