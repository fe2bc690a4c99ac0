package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "image1.png")
	c := New(Config{Timeout: 5 * time.Second, MaxRedirects: 5})

	if err := c.Fetch(context.Background(), server.URL+"/a.png", dest); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("unexpected content: %q", data)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("partial file should not remain after success")
	}
}

func TestFetch_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "image1")
	err := New(Config{}).Fetch(context.Background(), server.URL, dest)

	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", fetchErr.StatusCode)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("dest should not exist after a failed fetch")
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	dest := filepath.Join(t.TempDir(), "image1")
	err := New(Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), server.URL, dest)

	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *Error on timeout, got %v", err)
	}
	if fetchErr.StatusCode != 0 {
		t.Errorf("expected no status code, got %d", fetchErr.StatusCode)
	}
}

func TestFetch_TooManyRedirects(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/loop", http.StatusFound)
	}))
	defer server.Close()

	err := New(Config{MaxRedirects: 2}).Fetch(context.Background(), server.URL, filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, errTooManyRedirects) {
		t.Errorf("expected too many redirects, got %v", err)
	}
}

func TestFetch_FollowsRedirectWithinLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "img")
	if err := New(Config{MaxRedirects: 1}).Fetch(context.Background(), server.URL+"/start", dest); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
}

func TestFetch_SizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flush early so the body is chunked and has no Content-Length.
		w.(http.Flusher).Flush()
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "big")
	err := New(Config{MaxBytes: 10}).Fetch(context.Background(), server.URL, dest)
	if !errors.Is(err, errTooLarge) {
		t.Fatalf("expected size limit error, got %v", err)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("partial file should be removed on failure")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("dest should not exist on failure")
	}
}

func TestFetch_RejectsNonHTTP(t *testing.T) {
	tests := []string{
		"file:///etc/passwd",
		"ftp://example.com/a.jpg",
		"not a url at all",
	}
	for _, raw := range tests {
		err := New(Config{}).Fetch(context.Background(), raw, filepath.Join(t.TempDir(), "x"))
		var fetchErr *Error
		if !errors.As(err, &fetchErr) {
			t.Errorf("%q: expected *Error, got %v", raw, err)
		}
	}
}
