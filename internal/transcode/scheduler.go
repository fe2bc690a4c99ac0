package transcode

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending scheduled callback.
type Timer interface {
	Stop()
}

// Scheduler arms the supervisor's timers. Tests inject a manual implementation.
type Scheduler interface {
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Every runs fn every d until stopped.
	Every(d time.Duration, fn func()) Timer
}

// RealScheduler schedules on the wall clock.
type RealScheduler struct{}

type afterTimer struct {
	t *time.Timer
}

func (a afterTimer) Stop() {
	a.t.Stop()
}

func (RealScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return afterTimer{t: time.AfterFunc(d, fn)}
}

type tickerTimer struct {
	stop chan struct{}
	once sync.Once
}

func (tt *tickerTimer) Stop() {
	tt.once.Do(func() { close(tt.stop) })
}

func (RealScheduler) Every(d time.Duration, fn func()) Timer {
	tt := &tickerTimer{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-tt.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return tt
}

// scheduledTask is a named timer owned by one supervisor. Cancel is
// idempotent: the underlying timer is stopped exactly once.
type scheduledTask struct {
	name    string
	timer   Timer
	once    sync.Once
	disarms atomic.Int32
}

func newScheduledTask(name string, timer Timer) *scheduledTask {
	return &scheduledTask{name: name, timer: timer}
}

func (t *scheduledTask) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.timer.Stop()
		t.disarms.Add(1)
	})
}

// Disarms reports how many times the task was actually stopped.
func (t *scheduledTask) Disarms() int {
	if t == nil {
		return 0
	}
	return int(t.disarms.Load())
}
