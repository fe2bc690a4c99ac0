package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/ShivamThakkar1/imgtovideo/internal/logger"
	"github.com/ShivamThakkar1/imgtovideo/internal/store"
	"github.com/ShivamThakkar1/imgtovideo/pkg/api"

	"github.com/go-chi/chi/v5"
)

// GetStatus handles GET /status/{job_id}.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	h.respondJson(w, http.StatusOK, h.toJobResponse(r, job))
}

// ListJobs handles GET /jobs. Jobs are listed newest first.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.List(r.Context())
	if err != nil {
		h.httpError(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	resp := api.ListJobsResponse{Jobs: make([]api.JobSummary, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, api.JobSummary{
			JobID:     j.ID,
			Status:    string(j.Status),
			Progress:  j.Progress,
			CreatedAt: j.CreatedAt,
			Duration:  j.Duration,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}

// Download handles GET /download/{job_id}.
// Only completed jobs have an artifact; range requests are supported.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status != store.JobStatusCompleted {
		h.httpError(w, "Video not ready. Current status: "+string(job.Status), http.StatusBadRequest)
		return
	}

	f, err := os.Open(h.artifacts.OutputPath(job.ID))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.FromContext(r.Context(), h.logger).Error("failed to open artifact",
				slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
		h.httpError(w, "Video file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.httpError(w, "Video file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="video_`+job.ID+`.mp4"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handlers) loadJob(w http.ResponseWriter, r *http.Request) (*store.Job, bool) {
	id := chi.URLParam(r, "job_id")
	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "Job not found", http.StatusNotFound)
			return nil, false
		}
		h.httpError(w, "Failed to load job", http.StatusInternalServerError)
		return nil, false
	}
	return job, true
}

func (h *Handlers) toJobResponse(r *http.Request, j *store.Job) api.JobResponse {
	return api.JobResponse{
		JobID:                j.ID,
		Status:               string(j.Status),
		Progress:             j.Progress,
		CreatedAt:            j.CreatedAt,
		StartedAt:            j.StartedAt,
		CompletedAt:          j.CompletedAt,
		Duration:             j.Duration,
		Image1URL:            j.Image1URL,
		Image2URL:            j.Image2URL,
		EstimatedTimeSeconds: j.EstimatedTimeSeconds,
		RemainingTimeSeconds: j.RemainingTimeSeconds,
		DownloadURL:          h.absoluteURL(r, j.DownloadURL),
		FileSizeMB:           j.FileSizeMB,
		Error:                j.Error,
	}
}
