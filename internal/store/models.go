// Package store contains the job record layer for imgtovideo.
package store

import "time"

// JobStatus represents the lifecycle state of a conversion job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents a single two-image conversion request and its progress.
type Job struct {
	ID        string
	Status    JobStatus
	Progress  int // 0..100, only meaningful once processing
	CreatedAt time.Time

	StartedAt   *time.Time
	CompletedAt *time.Time

	Duration  int // requested output length in seconds
	Image1URL string
	Image2URL string
	Text      string // overlay text, empty means the configured default

	EstimatedTimeSeconds int
	RemainingTimeSeconds *int

	DownloadURL string
	FileSizeMB  *float64
	Error       string
}

// Clone returns a deep copy of the job, so callers never share pointer fields
// with the record held by the store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.RemainingTimeSeconds != nil {
		r := *j.RemainingTimeSeconds
		c.RemainingTimeSeconds = &r
	}
	if j.FileSizeMB != nil {
		f := *j.FileSizeMB
		c.FileSizeMB = &f
	}
	return &c
}

// StatusCounts is the number of jobs per status.
type StatusCounts struct {
	Queued     int
	Processing int
	Completed  int
	Failed     int
}

// Total returns the sum over all statuses.
func (c StatusCounts) Total() int {
	return c.Queued + c.Processing + c.Completed + c.Failed
}

// CountByStatus tallies jobs per status.
func CountByStatus(jobs []Job) StatusCounts {
	var c StatusCounts
	for _, j := range jobs {
		switch j.Status {
		case JobStatusQueued:
			c.Queued++
		case JobStatusProcessing:
			c.Processing++
		case JobStatusCompleted:
			c.Completed++
		case JobStatusFailed:
			c.Failed++
		}
	}
	return c
}
