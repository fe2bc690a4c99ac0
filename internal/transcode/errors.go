package transcode

import (
	"errors"
	"fmt"
	"time"
)

// ErrDeadlineExceeded matches every TimeoutError via errors.Is.
var ErrDeadlineExceeded = errors.New("transcode deadline exceeded")

// ErrAlreadyStarted is returned when a supervisor is run twice.
var ErrAlreadyStarted = errors.New("supervisor already started")

// Error reports a transform that failed to launch or exited unsuccessfully.
type Error struct {
	ExitCode int // -1 when the process never reported an exit code
	Err      error
}

func (e *Error) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("transcode failed (exit code %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("transcode failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TimeoutError reports that the transform did not finish before the deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transcode timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrDeadlineExceeded
}
