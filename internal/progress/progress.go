// Package progress turns raw transcoder output into job progress and time estimates.
package progress

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxRunning is the highest progress value reported before the transform
// has actually finished. 100 is reserved for a completed job.
const MaxRunning = 99

// Kind identifies what a Signal carries.
type Kind int

const (
	KindElapsed Kind = iota // media timestamp written so far
	KindPercent             // direct percentage from the transform
)

// Signal is a single progress sample emitted by the running transform.
type Signal struct {
	Kind    Kind
	Elapsed time.Duration
	Percent float64
}

// Calculate maps a signal onto a progress value in [0, MaxRunning] for an
// output of the given total length.
func Calculate(sig Signal, total time.Duration) int {
	var p float64
	switch sig.Kind {
	case KindPercent:
		p = sig.Percent
	default:
		if total <= 0 {
			return 0
		}
		p = float64(sig.Elapsed) / float64(total) * 100
	}

	rounded := int(math.Round(p))
	if rounded < 0 {
		return 0
	}
	if rounded > MaxRunning {
		return MaxRunning
	}
	return rounded
}

// Remaining estimates the seconds left from the wall time elapsed since
// startedAt and the current progress. ok is false until progress is non-zero.
func Remaining(progress int, startedAt, now time.Time) (seconds int, ok bool) {
	if progress <= 0 {
		return 0, false
	}
	elapsed := now.Sub(startedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	total := elapsed / (float64(progress) / 100)
	left := math.Ceil(total - elapsed)
	if left < 0 {
		left = 0
	}
	return int(left), true
}

// Estimate returns the up-front processing time estimate for a job producing
// durationSeconds of output: ceil(duration*factor + overhead).
func Estimate(durationSeconds int, factor float64, overheadSeconds int) int {
	return int(math.Ceil(float64(durationSeconds)*factor + float64(overheadSeconds)))
}

// ParseLine parses one line of ffmpeg -progress output. Lines that carry no
// progress information return ok=false.
func ParseLine(line string) (Signal, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return Signal{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return Signal{}, false
		}
		return Signal{Kind: KindElapsed, Elapsed: time.Duration(us) * time.Microsecond}, true
	case "out_time":
		d, ok := parseClock(value)
		if !ok {
			return Signal{}, false
		}
		return Signal{Kind: KindElapsed, Elapsed: d}, true
	case "percent":
		pct, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return Signal{}, false
		}
		return Signal{Kind: KindPercent, Percent: pct}, true
	}
	return Signal{}, false
}

// parseClock parses HH:MM:SS(.fraction) timestamps.
func parseClock(s string) (time.Duration, bool) {
	if strings.HasPrefix(s, "-") {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}
	total := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second))
	return total, true
}
