package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInputPath_Extension(t *testing.T) {
	l := New("/tmp/in", "/tmp/out")

	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/a.jpg", "/tmp/in/job/image1.jpg"},
		{"https://example.com/b.PNG?size=large", "/tmp/in/job/image1.png"},
		{"https://example.com/photo", "/tmp/in/job/image1"},
		{"https://example.com/script.sh", "/tmp/in/job/image1"},
		{"::not a url", "/tmp/in/job/image1"},
	}
	for _, tt := range tests {
		if got := l.InputPath("job", 1, tt.url); got != tt.want {
			t.Errorf("InputPath(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	l := New("/tmp/in", "/tmp/out")
	if got := l.OutputPath("abc"); got != "/tmp/out/abc.mp4" {
		t.Errorf("OutputPath() = %s", got)
	}
}

func TestLifecycle(t *testing.T) {
	root := t.TempDir()
	l := New(filepath.Join(root, "tmp"), filepath.Join(root, "out"))

	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := l.PrepareInputs("job"); err != nil {
		t.Fatalf("PrepareInputs failed: %v", err)
	}

	input := l.InputPath("job", 1, "http://x/a.jpg")
	if err := os.WriteFile(input, []byte("img"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := os.WriteFile(l.OutputPath("job"), []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}

	if err := l.RemoveInputs("job"); err != nil {
		t.Fatalf("RemoveInputs failed: %v", err)
	}
	if _, err := os.Stat(l.InputDir("job")); !os.IsNotExist(err) {
		t.Errorf("expected input dir to be removed, stat err: %v", err)
	}

	if err := l.RemoveOutput("job"); err != nil {
		t.Fatalf("RemoveOutput failed: %v", err)
	}
	if _, err := os.Stat(l.OutputPath("job")); !os.IsNotExist(err) {
		t.Errorf("expected output to be removed, stat err: %v", err)
	}

	// Both removals are idempotent.
	if err := l.RemoveInputs("job"); err != nil {
		t.Errorf("second RemoveInputs: %v", err)
	}
	if err := l.RemoveOutput("job"); err != nil {
		t.Errorf("second RemoveOutput: %v", err)
	}
}
