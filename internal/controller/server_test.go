package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/internal/controller/handlers"
	"github.com/ShivamThakkar1/imgtovideo/internal/pipeline"
	"github.com/ShivamThakkar1/imgtovideo/internal/store"
	"github.com/ShivamThakkar1/imgtovideo/internal/transcode"
	"github.com/ShivamThakkar1/imgtovideo/internal/workspace"
	"github.com/ShivamThakkar1/imgtovideo/pkg/api"
)

type fileFetcher struct{}

func (fileFetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	if strings.Contains(rawURL, "missing") {
		return errors.New("unexpected status 404")
	}
	return os.WriteFile(dest, []byte("img"), 0o644)
}

type fileTranscoder struct{}

func (fileTranscoder) Transcode(ctx context.Context, req transcode.Request, onProgress func(int)) transcode.Result {
	onProgress(50)
	if err := os.WriteFile(req.Params.Output, make([]byte, 1024*1024), 0o644); err != nil {
		return transcode.Result{State: transcode.StateFailed, Err: err}
	}
	return transcode.Result{State: transcode.StateSucceeded}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	layout := workspace.New(t.TempDir(), t.TempDir())
	s := store.NewMemoryStore()
	coord := pipeline.New(s, fileFetcher{}, fileTranscoder{}, layout, pipeline.Config{
		MinDuration:       1,
		MaxDuration:       300,
		EstimateFactor:    2,
		EstimateOverhead:  10,
		MaxConcurrentJobs: 2,
	}, log)
	t.Cleanup(func() { _ = coord.Shutdown(context.Background()) })

	h := handlers.New(coord, s, layout, "", log)
	srv := httptest.NewServer(NewRouter(Options{RateLimit: 0}, h, log))
	t.Cleanup(srv.Close)
	return srv
}

func submit(t *testing.T, base, body string) (*http.Response, api.ConvertResponse) {
	t.Helper()
	resp, err := http.Post(base+"/convert", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out api.ConvertResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func waitTerminal(t *testing.T, statusURL string) api.JobResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(statusURL)
		if err != nil {
			t.Fatalf("get status: %v", err)
		}
		var job api.JobResponse
		_ = json.NewDecoder(resp.Body).Decode(&job)
		resp.Body.Close()
		if job.Status == "completed" || job.Status == "failed" {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal status")
	return api.JobResponse{}
}

func TestEndToEnd_Completed(t *testing.T) {
	srv := newTestServer(t)

	resp, created := submit(t, srv.URL, `{"image1_url":"https://e.com/a.jpg","image2_url":"https://e.com/b.jpg","duration":30}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	if created.Status != "queued" || !strings.HasPrefix(created.StatusURL, srv.URL+"/status/") {
		t.Fatalf("unexpected response %+v", created)
	}

	job := waitTerminal(t, created.StatusURL)
	if job.Status != "completed" || job.Progress != 100 {
		t.Fatalf("unexpected final job %+v", job)
	}
	if job.FileSizeMB == nil || *job.FileSizeMB != 1 {
		t.Errorf("expected 1 MB, got %v", job.FileSizeMB)
	}

	dl, err := http.Get(job.DownloadURL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer dl.Body.Close()
	body, _ := io.ReadAll(dl.Body)
	if dl.StatusCode != http.StatusOK || len(body) != 1024*1024 {
		t.Errorf("download returned %d with %d bytes", dl.StatusCode, len(body))
	}
}

func TestEndToEnd_InvalidDuration(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := submit(t, srv.URL, `{"image1_url":"https://e.com/a.jpg","image2_url":"https://e.com/b.jpg","duration":301}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}

	list, err := http.Get(srv.URL + "/jobs")
	if err != nil {
		t.Fatal(err)
	}
	defer list.Body.Close()
	var jobs api.ListJobsResponse
	_ = json.NewDecoder(list.Body).Decode(&jobs)
	if len(jobs.Jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs.Jobs))
	}
}

func TestEndToEnd_FetchFailure(t *testing.T) {
	srv := newTestServer(t)

	_, created := submit(t, srv.URL, `{"image1_url":"https://e.com/missing.jpg","image2_url":"https://e.com/b.jpg","duration":5}`)
	job := waitTerminal(t, created.StatusURL)
	if job.Status != "failed" || !strings.Contains(job.Error, "failed to download image 1") {
		t.Fatalf("unexpected final job %+v", job)
	}

	dl, err := http.Get(srv.URL + "/download/" + created.JobID)
	if err != nil {
		t.Fatal(err)
	}
	dl.Body.Close()
	if dl.StatusCode != http.StatusBadRequest {
		t.Errorf("download of failed job returned %d, want 400", dl.StatusCode)
	}
}

func TestRouter_UnknownJob(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/status/nope", "/download/nope"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s returned %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestRouter_RateLimitOnConvertOnly(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handlers.New(nil, store.NewMemoryStore(), workspace.New(t.TempDir(), t.TempDir()), "", log)
	router := NewRouter(Options{RateLimit: 1, RateLimitBurst: 1}, h, log)

	codes := make([]int, 0, 2)
	for range 2 {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader("{")))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusBadRequest || codes[1] != http.StatusTooManyRequests {
		t.Errorf("unexpected codes %v", codes)
	}

	for range 3 {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("health returned %d", rr.Code)
		}
	}
}
