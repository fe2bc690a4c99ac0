package pipeline

import (
	"errors"
	"fmt"
)

// ErrShutdown is returned by Submit once the coordinator is shutting down.
var ErrShutdown = errors.New("coordinator is shut down")

// ValidationError rejects a request before any job record exists.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// CleanupError reports a best-effort file removal that failed. It is logged
// and never changes a job's status.
type CleanupError struct {
	JobID string
	Path  string
	Err   error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup of %s for job %s failed: %v", e.Path, e.JobID, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
