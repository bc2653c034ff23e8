package runtime

import "errors"

var (
	// ErrJobTerminal means the job already succeeded or failed; the execution must no-op.
	ErrJobTerminal = errors.New("job is terminal")
	// ErrJobNotRunning is returned by SucceedTx when the row left running under us. The
	// surrounding transaction rolls back, so none of this execution's artifacts are kept.
	ErrJobNotRunning = errors.New("job is not running")
)

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as an infrastructure failure. The executor leaves the job running and
// reports the error, so the queue redelivers the task.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	var r *retryableError
	if errors.As(err, &r) {
		return err
	}
	return &retryableError{err: err}
}

func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return "panic: unexpected error" }

func errFromRecover(v any) error { return &panicError{Val: v} }
