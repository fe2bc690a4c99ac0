package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// stopGrace is how long a process gets to exit after an interrupt before it is killed.
const stopGrace = 5 * time.Second

// ExecRuntime implements the Runtime interface using raw OS processes.
type ExecRuntime struct {
	WorkDir string
}

// NewExecRuntime creates a new process-based runtime.
func NewExecRuntime(workDir string) *ExecRuntime {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "imgtovideo", "runner")
	}
	return &ExecRuntime{WorkDir: workDir}
}

// ExecHandle represents a running local process.
type ExecHandle struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *tailBuffer

	done     chan struct{}
	exitCode int
	waitErr  error

	closeOnce sync.Once
}

// Start implements Runtime.Start using os/exec.
func (e *ExecRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("command is required")
	}
	if err := os.MkdirAll(e.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	// The child writes straight into the pipe; reads never race with Wait.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Dir = e.WorkDir
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	stderr := newTailBuffer(4096)
	cmd.Stdout = pw
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", opts.Command[0], err)
	}
	pw.Close()

	h := &ExecHandle{
		cmd:    cmd,
		stdout: pr,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go h.wait()
	return h, nil
}

func (h *ExecHandle) wait() {
	err := h.cmd.Wait()
	h.exitCode = 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			h.exitCode = exitErr.ExitCode()
		} else {
			h.exitCode = -1
		}
		h.waitErr = err
	}
	close(h.done)
}

func (h *ExecHandle) Wait(ctx context.Context) (ExitResult, error) {
	select {
	case <-h.done:
		if h.exitCode == 0 {
			return ExitResult{ExitCode: 0}, nil
		}
		msg := h.waitErr.Error()
		if tail := strings.TrimSpace(h.stderr.String()); tail != "" {
			msg = msg + ": " + tail
		}
		return ExitResult{ExitCode: h.exitCode, Error: errors.New(msg)}, nil
	case <-ctx.Done():
		return ExitResult{ExitCode: -1, Error: ctx.Err()}, ctx.Err()
	}
}

// Stop interrupts the process and kills it if it is still alive after the
// grace period or when ctx expires.
func (h *ExecHandle) Stop(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if err := h.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return h.kill()
	}

	grace := time.NewTimer(stopGrace)
	defer grace.Stop()

	select {
	case <-h.done:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}
	return h.kill()
}

func (h *ExecHandle) kill() error {
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill process: %w", err)
	}
	<-h.done
	return nil
}

func (h *ExecHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	return h.stdout, nil
}

func (h *ExecHandle) Cleanup(ctx context.Context) error {
	var err error
	h.closeOnce.Do(func() {
		err = h.stdout.Close()
		if errors.Is(err, os.ErrClosed) {
			err = nil
		}
	})
	return err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
