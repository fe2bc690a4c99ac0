package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ShivamThakkar1/imgtovideo/internal/logger"
	"github.com/ShivamThakkar1/imgtovideo/internal/pipeline"
	"github.com/ShivamThakkar1/imgtovideo/pkg/api"
)

// Convert handles POST /convert.
// It validates the request, queues a job and returns without waiting for it.
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ConvertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	job, err := h.submitter.Submit(ctx, pipeline.Request{
		Image1URL: req.Image1URL,
		Image2URL: req.Image2URL,
		Duration:  req.Duration,
		Text:      req.Text,
	})
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			h.httpError(w, verr.Error(), http.StatusBadRequest)
			return
		}
		logger.FromContext(ctx, h.logger).Error("failed to submit job", slog.String("error", err.Error()))
		h.httpError(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusAccepted, api.ConvertResponse{
		JobID:                job.ID,
		Status:               string(job.Status),
		EstimatedTimeSeconds: job.EstimatedTimeSeconds,
		StatusURL:            h.absoluteURL(r, "/status/"+job.ID),
	})
}
