// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

import "time"

// ConvertRequest is the request body for creating a conversion job.
type ConvertRequest struct {
	Image1URL string `json:"image1_url"`
	Image2URL string `json:"image2_url"`
	Duration  int    `json:"duration"`
	// Text overrides the configured overlay text for this job.
	Text string `json:"text,omitempty"`
}

// ConvertResponse is the response body after a job has been queued.
type ConvertResponse struct {
	JobID                string `json:"job_id"`
	Status               string `json:"status"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
	StatusURL            string `json:"status_url"`
}

// JobResponse is the full projection of a job returned by status queries.
type JobResponse struct {
	JobID                string     `json:"job_id"`
	Status               string     `json:"status"`
	Progress             int        `json:"progress"`
	CreatedAt            time.Time  `json:"created_at"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	Duration             int        `json:"duration"`
	Image1URL            string     `json:"image1_url"`
	Image2URL            string     `json:"image2_url"`
	EstimatedTimeSeconds int        `json:"estimated_time_seconds"`
	RemainingTimeSeconds *int       `json:"remaining_time_seconds,omitempty"`
	DownloadURL          string     `json:"download_url,omitempty"`
	FileSizeMB           *float64   `json:"file_size_mb,omitempty"`
	Error                string     `json:"error,omitempty"`
}

// JobSummary is one entry of the job listing.
type JobSummary struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	Duration  int       `json:"duration"`
}

// ListJobsResponse is the response body for the job listing.
type ListJobsResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// JobCounts is the number of jobs per status.
type JobCounts struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// HealthResponse reports liveness and job counts.
type HealthResponse struct {
	Status        string    `json:"status"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	TotalJobs     int       `json:"total_jobs"`
	Jobs          JobCounts `json:"jobs"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
