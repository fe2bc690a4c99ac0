package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/pkg/api"
)

// JobClient handles API calls to the imgtovideo server.
type JobClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewJobClient creates a new client with the given base URL.
func NewJobClient(baseURL string) *JobClient {
	return &JobClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// newAPIError prefers the JSON error message over the raw body.
func newAPIError(status int, body []byte) *APIError {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// Convert sends POST /convert to queue a new job.
func (c *JobClient) Convert(req api.ConvertRequest) (*api.ConvertResponse, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result api.ConvertResponse
	if err := c.doJSON(http.MethodPost, "/convert", bytes.NewReader(bodyBytes), http.StatusAccepted, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStatus sends GET /status/{id}.
func (c *JobClient) GetStatus(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.doJSON(http.MethodGet, "/status/"+jobID, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListJobs sends GET /jobs.
func (c *JobClient) ListJobs() ([]api.JobSummary, error) {
	var result api.ListJobsResponse
	if err := c.doJSON(http.MethodGet, "/jobs", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// Health sends GET /health.
func (c *JobClient) Health() (*api.HealthResponse, error) {
	var result api.HealthResponse
	if err := c.doJSON(http.MethodGet, "/health", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Download streams GET /download/{id} into w and returns the bytes written.
func (c *JobClient) Download(jobID string, w io.Writer) (int64, error) {
	httpReq, err := http.NewRequest(http.MethodGet, c.BaseURL+"/download/"+jobID, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	// Videos can take longer than the default client timeout to transfer.
	client := *c.HTTPClient
	client.Timeout = 0

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, newAPIError(resp.StatusCode, respBody)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to write video: %w", err)
	}
	return n, nil
}

func (c *JobClient) doJSON(method, path string, body io.Reader, wantStatus int, out any) error {
	httpReq, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		return newAPIError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
