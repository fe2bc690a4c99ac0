// Package workspace owns the on-disk layout for job inputs and outputs.
// Every path is namespaced by job id so concurrent jobs never collide.
package workspace

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
}

// Layout resolves job file locations under a temp and an output root.
type Layout struct {
	TempDir   string
	OutputDir string
}

// New creates a layout rooted at the given directories.
func New(tempDir, outputDir string) *Layout {
	return &Layout{TempDir: tempDir, OutputDir: outputDir}
}

// Ensure creates both root directories.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.TempDir, l.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// InputDir is the per-job scratch directory for downloaded images.
func (l *Layout) InputDir(jobID string) string {
	return filepath.Join(l.TempDir, jobID)
}

// InputPath returns where image n (1-based) of a job is downloaded to.
// The extension follows the source URL when it names a known image type.
func (l *Layout) InputPath(jobID string, n int, sourceURL string) string {
	return filepath.Join(l.InputDir(jobID), fmt.Sprintf("image%d%s", n, imageExt(sourceURL)))
}

// OutputPath is the final artifact location for a job.
func (l *Layout) OutputPath(jobID string) string {
	return filepath.Join(l.OutputDir, jobID+".mp4")
}

// PrepareInputs creates the job's scratch directory.
func (l *Layout) PrepareInputs(jobID string) error {
	return os.MkdirAll(l.InputDir(jobID), 0o755)
}

// RemoveInputs deletes the job's scratch directory, including partial downloads.
func (l *Layout) RemoveInputs(jobID string) error {
	return os.RemoveAll(l.InputDir(jobID))
}

// RemoveOutput deletes the job's artifact. A missing artifact is not an error.
func (l *Layout) RemoveOutput(jobID string) error {
	if err := os.Remove(l.OutputPath(jobID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func imageExt(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if imageExts[ext] {
		return ext
	}
	return ""
}
