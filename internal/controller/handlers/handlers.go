// Package handlers contains HTTP handlers for the conversion API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/internal/pipeline"
	"github.com/ShivamThakkar1/imgtovideo/internal/store"
	"github.com/ShivamThakkar1/imgtovideo/pkg/api"
)

// maxBodyBytes bounds a conversion request body.
const maxBodyBytes = 1 << 20

// Submitter accepts conversion requests.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) (*store.Job, error)
}

// ArtifactLocator resolves where a job's output lives on disk.
type ArtifactLocator interface {
	OutputPath(jobID string) string
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	submitter Submitter
	store     store.JobStore
	artifacts ArtifactLocator
	publicURL string
	logger    *slog.Logger
	startedAt time.Time
	now       func() time.Time
}

// New creates a new Handlers instance. An empty publicURL makes links
// relative to the request's host.
func New(submitter Submitter, s store.JobStore, artifacts ArtifactLocator, publicURL string, logger *slog.Logger) *Handlers {
	return &Handlers{
		submitter: submitter,
		store:     s,
		artifacts: artifacts,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// absoluteURL turns a path into a full URL, using the request's host when no
// public URL is configured. Absolute inputs are returned unchanged.
func (h *Handlers) absoluteURL(r *http.Request, path string) string {
	if path == "" || !strings.HasPrefix(path, "/") {
		return path
	}
	if h.publicURL != "" {
		return h.publicURL + path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	switch proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto {
	case "http", "https":
		scheme = proto
	}
	return scheme + "://" + r.Host + path
}
