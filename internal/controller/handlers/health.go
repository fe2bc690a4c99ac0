package handlers

import (
	"net/http"

	"github.com/ShivamThakkar1/imgtovideo/internal/store"
	"github.com/ShivamThakkar1/imgtovideo/pkg/api"
)

// Health is a liveness check that also reports job counts by status.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.List(r.Context())
	if err != nil {
		h.httpError(w, "Job store unavailable", http.StatusServiceUnavailable)
		return
	}
	counts := store.CountByStatus(jobs)

	h.respondJson(w, http.StatusOK, api.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(h.now().Sub(h.startedAt).Seconds()),
		TotalJobs:     counts.Total(),
		Jobs: api.JobCounts{
			Queued:     counts.Queued,
			Processing: counts.Processing,
			Completed:  counts.Completed,
			Failed:     counts.Failed,
		},
	})
}
