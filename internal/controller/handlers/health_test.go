package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/internal/store"
	"github.com/ShivamThakkar1/imgtovideo/pkg/api"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name           string
		mockSetup      func(*mockStore)
		expectedStatus int
		expectedTotal  int
	}{
		{
			name:           "Healthy with jobs",
			expectedStatus: http.StatusOK,
			expectedTotal:  3,
		},
		{
			name:           "Store unavailable",
			mockSetup:      func(m *mockStore) { m.listErr = errors.New("boom") },
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newMockStore(
				&store.Job{ID: "a", Status: store.JobStatusQueued},
				&store.Job{ID: "b", Status: store.JobStatusProcessing},
				&store.Job{ID: "c", Status: store.JobStatusFailed},
			)
			if tt.mockSetup != nil {
				tt.mockSetup(ms)
			}
			h := New(&mockSubmitter{}, ms, mockArtifacts{}, "", discardLogger())
			h.startedAt = time.Now().Add(-90 * time.Second)

			rr := httptest.NewRecorder()
			newTestRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp api.HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.Status != "healthy" || resp.TotalJobs != tt.expectedTotal {
				t.Errorf("unexpected response %+v", resp)
			}
			if resp.Jobs.Queued != 1 || resp.Jobs.Processing != 1 || resp.Jobs.Failed != 1 || resp.Jobs.Completed != 0 {
				t.Errorf("unexpected counts %+v", resp.Jobs)
			}
			if resp.UptimeSeconds < 90 {
				t.Errorf("expected uptime >= 90, got %d", resp.UptimeSeconds)
			}
		})
	}
}
