// Package transcode runs and supervises the external video transform.
package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ShivamThakkar1/imgtovideo/internal/progress"
	"github.com/ShivamThakkar1/imgtovideo/internal/transcode/runtime"
)

// State is the supervisor lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state admits no further transitions.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

func isValidTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRunning
	case StateRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

const (
	// signalBuffer bounds progress samples waiting to be applied. Samples
	// beyond it are dropped; a later sample supersedes them anyway.
	signalBuffer = 16
	// stopTimeout bounds the forced stop on deadline.
	stopTimeout = 10 * time.Second
	// errorTailLines is how many non-progress output lines are kept for error messages.
	errorTailLines = 10
)

// SupervisorConfig holds the timing of one supervised run.
type SupervisorConfig struct {
	Timeout           time.Duration
	KeepAliveInterval time.Duration
	// Total is the output length, used to turn media timestamps into percent.
	Total time.Duration
}

// Hooks receive events from a running supervisor. Both are optional.
type Hooks struct {
	// OnProgress is called from the supervisor goroutine with values in [0, 99].
	OnProgress func(percent int)
	// OnKeepAlive is called on every keep-alive tick while running.
	OnKeepAlive func()
}

// Result is the terminal outcome handed back to the caller.
type Result struct {
	State      State
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

type exitEvent struct {
	result runtime.ExitResult
	err    error
}

type startEvent struct {
	handle runtime.Handle
	err    error
}

// Supervisor drives exactly one transform run through
// idle -> running -> {succeeded, failed, timed_out}.
type Supervisor struct {
	runtime   runtime.Runtime
	opts      runtime.StartOptions
	config    SupervisorConfig
	scheduler Scheduler
	hooks     Hooks
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     State
	startedAt time.Time
	keepalive *scheduledTask
	deadline  *scheduledTask

	tailMu sync.Mutex
	tail   []string
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(rt runtime.Runtime, opts runtime.StartOptions, config SupervisorConfig, scheduler Scheduler, hooks Hooks, logger *slog.Logger) *Supervisor {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = 10 * time.Second
	}
	if scheduler == nil {
		scheduler = RealScheduler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		runtime:   rt,
		opts:      opts,
		config:    config,
		scheduler: scheduler,
		hooks:     hooks,
		logger:    logger,
		now:       time.Now,
	}
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !isValidTransition(s.state, to) {
		return false
	}
	s.state = to
	return true
}

// Run launches the transform and blocks until it reaches a terminal state.
// Cancelling ctx stops the transform and fails the run.
func (s *Supervisor) Run(ctx context.Context) Result {
	if !s.transition(StateRunning) {
		return Result{State: s.State(), Err: ErrAlreadyStarted}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timeoutCh := make(chan struct{}, 1)

	s.mu.Lock()
	s.startedAt = s.now()
	s.deadline = newScheduledTask("deadline", s.scheduler.AfterFunc(s.config.Timeout, func() {
		select {
		case timeoutCh <- struct{}{}:
		default:
		}
	}))
	s.keepalive = newScheduledTask("keepalive", s.scheduler.Every(s.config.KeepAliveInterval, s.keepAlive))
	startedAt := s.startedAt
	s.mu.Unlock()

	// Launching can block (a docker image pull), so it races the deadline too.
	startCh := make(chan startEvent, 1)
	go func() {
		handle, err := s.runtime.Start(runCtx, s.opts)
		startCh <- startEvent{handle: handle, err: err}
	}()

	var handle runtime.Handle
	select {
	case ev := <-startCh:
		if ev.err != nil {
			return s.finish(StateFailed, &Error{ExitCode: -1, Err: ev.err}, nil)
		}
		handle = ev.handle

	case <-timeoutCh:
		s.logger.Warn("transcode deadline reached before the process started",
			slog.Duration("timeout", s.config.Timeout))
		cancel()
		go s.discardLate(startCh)
		return s.finish(StateTimedOut, &TimeoutError{Timeout: s.config.Timeout}, nil)

	case <-ctx.Done():
		cancel()
		go s.discardLate(startCh)
		return s.finish(StateFailed, &Error{ExitCode: -1, Err: fmt.Errorf("transcode cancelled: %w", ctx.Err())}, nil)
	}

	signals := make(chan progress.Signal, signalBuffer)
	go s.readProgress(runCtx, handle, signals)

	exitCh := make(chan exitEvent, 1)
	go func() {
		res, err := handle.Wait(runCtx)
		exitCh <- exitEvent{result: res, err: err}
	}()

	s.logger.Info("transcode started", slog.Time("started_at", startedAt))

	for {
		select {
		case sig := <-signals:
			if s.hooks.OnProgress != nil {
				s.hooks.OnProgress(progress.Calculate(sig, s.config.Total))
			}

		case <-timeoutCh:
			s.logger.Warn("transcode deadline reached, stopping process",
				slog.Duration("timeout", s.config.Timeout))
			cancel()
			s.stop(handle)
			return s.finish(StateTimedOut, &TimeoutError{Timeout: s.config.Timeout}, handle)

		case ev := <-exitCh:
			if ev.err != nil {
				// Wait only fails when runCtx ends, and timeouts are handled above.
				s.stop(handle)
				return s.finish(StateFailed, &Error{ExitCode: -1, Err: ev.err}, handle)
			}
			if ev.result.ExitCode != 0 {
				return s.finish(StateFailed, &Error{ExitCode: ev.result.ExitCode, Err: s.exitError(ev.result)}, handle)
			}
			return s.finish(StateSucceeded, nil, handle)

		case <-ctx.Done():
			cancel()
			s.stop(handle)
			return s.finish(StateFailed, &Error{ExitCode: -1, Err: fmt.Errorf("transcode cancelled: %w", ctx.Err())}, handle)
		}
	}
}

// finish performs the single terminal transition and disarms both timers.
func (s *Supervisor) finish(to State, err error, handle runtime.Handle) Result {
	s.mu.Lock()
	if !isValidTransition(s.state, to) {
		state := s.state
		s.mu.Unlock()
		return Result{State: state, Err: fmt.Errorf("invalid transition %s -> %s", state, to)}
	}
	s.state = to
	s.deadline.Cancel()
	s.keepalive.Cancel()
	startedAt := s.startedAt
	s.mu.Unlock()

	finishedAt := s.now()

	if handle != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if cerr := handle.Cleanup(cleanupCtx); cerr != nil {
			s.logger.Warn("transcode cleanup failed", slog.String("error", cerr.Error()))
		}
	}

	attrs := []any{
		slog.String("state", to.String()),
		slog.Duration("elapsed", finishedAt.Sub(startedAt)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		s.logger.Error("transcode finished", attrs...)
	} else {
		s.logger.Info("transcode finished", attrs...)
	}

	return Result{State: to, Err: err, StartedAt: startedAt, FinishedAt: finishedAt}
}

// discardLate stops and cleans up a process whose launch finished after the
// run had already ended.
func (s *Supervisor) discardLate(startCh <-chan startEvent) {
	ev := <-startCh
	if ev.err != nil || ev.handle == nil {
		return
	}
	s.stop(ev.handle)
	cleanupCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := ev.handle.Cleanup(cleanupCtx); err != nil {
		s.logger.Warn("transcode cleanup failed", slog.String("error", err.Error()))
	}
}

func (s *Supervisor) keepAlive() {
	s.mu.Lock()
	running := s.state == StateRunning
	startedAt := s.startedAt
	s.mu.Unlock()
	if !running {
		return
	}

	s.logger.Info("transcode still running", slog.Duration("elapsed", s.now().Sub(startedAt)))
	if s.hooks.OnKeepAlive != nil {
		s.hooks.OnKeepAlive()
	}
}

func (s *Supervisor) stop(handle runtime.Handle) {
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := handle.Stop(stopCtx); err != nil {
		s.logger.Error("failed to stop transcode process", slog.String("error", err.Error()))
	}
}

// readProgress scans the progress stream and forwards parsed samples without
// ever blocking the transform on a slow consumer.
func (s *Supervisor) readProgress(ctx context.Context, handle runtime.Handle, signals chan<- progress.Signal) {
	rc, err := handle.StreamLogs(ctx)
	if err != nil {
		s.logger.Warn("failed to open progress stream", slog.String("error", err.Error()))
		return
	}
	if rc == nil {
		return
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		sig, ok := progress.ParseLine(line)
		if !ok {
			s.recordLine(line)
			continue
		}
		select {
		case signals <- sig:
		default:
		}
	}
}

// recordLine keeps the last few diagnostic lines. Progress key=value lines
// without a sample (frame=, fps=, progress=) are skipped.
func (s *Supervisor) recordLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || isProgressKey(line) {
		return
	}
	s.tailMu.Lock()
	defer s.tailMu.Unlock()
	s.tail = append(s.tail, line)
	if len(s.tail) > errorTailLines {
		s.tail = s.tail[len(s.tail)-errorTailLines:]
	}
}

func isProgressKey(line string) bool {
	key, _, found := strings.Cut(line, "=")
	return found && !strings.ContainsAny(key, " \t:")
}

func (s *Supervisor) exitError(res runtime.ExitResult) error {
	if res.Error != nil {
		return res.Error
	}
	s.tailMu.Lock()
	defer s.tailMu.Unlock()
	if len(s.tail) > 0 {
		return errors.New(strings.Join(s.tail, "; "))
	}
	return fmt.Errorf("exit code %d", res.ExitCode)
}
