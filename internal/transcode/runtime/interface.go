// Package runtime provides the Runtime interface for transcoder execution backends.
package runtime

import (
	"context"
	"io"
)

// Runtime defines the interface for launching the transcoder.
// Implementations include raw process execution and Docker.
type Runtime interface {
	// Start launches the command and returns a handle to it.
	Start(ctx context.Context, opts StartOptions) (Handle, error)
}

// StartOptions contains the parameters for a single transcoder run.
type StartOptions struct {
	// Command is the argv; Command[0] is the transcoder binary.
	Command []string
	Env     map[string]string

	// Image is the container image (docker only).
	Image string
	// Mounts are host directories the command reads or writes. Container
	// runtimes bind them at the same path.
	Mounts []string
}

// ExitResult is the outcome of a finished process.
type ExitResult struct {
	ExitCode int
	Error    error
}

// Handle represents a running transcoder.
type Handle interface {
	// Wait blocks until the process exits or ctx is done.
	Wait(ctx context.Context) (ExitResult, error)

	// Stop terminates the process, forcefully if it does not exit in time.
	Stop(ctx context.Context) error

	// StreamLogs returns the progress output stream of the process.
	StreamLogs(ctx context.Context) (io.ReadCloser, error)

	// Cleanup releases resources held after the process exited.
	Cleanup(ctx context.Context) error
}
