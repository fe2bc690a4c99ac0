package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no job exists for the given id.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyExists is returned by Create on an id collision.
	ErrAlreadyExists = errors.New("job already exists")
)

// JobStore owns job records. Implementations must be safe for concurrent use
// and must never hand out references to their internal records.
type JobStore interface {
	// Create inserts a new job record.
	Create(ctx context.Context, job *Job) error

	// Get returns a consistent snapshot of a job.
	Get(ctx context.Context, id string) (*Job, error)

	// Update applies fn to the job under the record's lock.
	// Updating a job that no longer exists is a no-op.
	Update(ctx context.Context, id string, fn func(*Job)) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// List returns snapshots of every job, newest first.
	List(ctx context.Context) ([]Job, error)
}
