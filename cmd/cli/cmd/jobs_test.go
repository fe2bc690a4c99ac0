package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/pkg/api"

	"github.com/spf13/viper"
)

func TestJobsCommand(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.ListJobsResponse{Jobs: []api.JobSummary{
			{JobID: "job-new", Status: "processing", Progress: 42, CreatedAt: time.Now(), Duration: 10},
			{JobID: "job-old", Status: "completed", Progress: 100, CreatedAt: time.Now().Add(-time.Hour), Duration: 5},
		}})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"jobs"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if strings.Index(output, "job-new") > strings.Index(output, "job-old") {
		t.Errorf("expected server order preserved, got: %s", output)
	}
	if !strings.Contains(output, "42%") {
		t.Errorf("expected progress in output, got: %s", output)
	}
}

func TestJobsCommand_Empty(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ListJobsResponse{Jobs: []api.JobSummary{}})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"jobs"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "No jobs found.") {
		t.Errorf("expected empty message, got: %s", stdout.String())
	}
}

func TestHealthCommand(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.HealthResponse{
			Status:        "healthy",
			UptimeSeconds: 120,
			TotalJobs:     3,
			Jobs:          api.JobCounts{Queued: 1, Processing: 1, Completed: 1},
		})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"health"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "healthy") || !strings.Contains(output, "Total jobs: 3") {
		t.Errorf("unexpected output: %s", output)
	}
}
