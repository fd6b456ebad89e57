package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eunmann/csvload/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// ProgressTracker tracks how much of an input of known size has been consumed
// and emits rate-limited progress lines. It is safe for concurrent use.
type ProgressTracker struct {
	total     int64
	done      atomic.Int64
	rows      atomic.Int64
	startTime time.Time
	log       zerolog.Logger
	phase     string
	interval  time.Duration

	mu      sync.Mutex
	lastLog time.Time
}

// NewProgressTracker creates a tracker for total bytes. An interval of zero
// or less disables periodic logging.
func NewProgressTracker(phase string, total int64, interval time.Duration, log zerolog.Logger) *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		total:     total,
		startTime: now,
		log:       log,
		phase:     phase,
		interval:  interval,
		lastLog:   now,
	}
}

// Update records the absolute number of bytes consumed and rows seen so far.
func (pt *ProgressTracker) Update(bytesDone, rows int64) {
	pt.done.Store(bytesDone)
	pt.rows.Store(rows)
}

// Progress returns bytes done, rows seen and total bytes.
func (pt *ProgressTracker) Progress() (done, rows, total int64) {
	return pt.done.Load(), pt.rows.Load(), pt.total
}

// ProgressPct returns the progress percentage (0-100).
func (pt *ProgressTracker) ProgressPct() float64 {
	if pt.total <= 0 {
		return 100.0
	}
	done := pt.done.Load()
	if done >= pt.total {
		return 100.0
	}
	return float64(done) * 100.0 / float64(pt.total)
}

// ETA returns the estimated time remaining based on the average byte rate.
func (pt *ProgressTracker) ETA() time.Duration {
	done := pt.done.Load()
	if done <= 0 {
		return 0
	}
	remaining := pt.total - done
	if remaining <= 0 {
		return 0
	}
	perByte := float64(time.Since(pt.startTime)) / float64(done)
	return time.Duration(perByte * float64(remaining))
}

// Elapsed returns time since tracking started.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}

// MaybeLog emits a progress line if the interval has passed since the last one.
// Returns true if a line was written.
func (pt *ProgressTracker) MaybeLog(now time.Time) bool {
	if pt.interval <= 0 {
		return false
	}

	pt.mu.Lock()
	if now.Sub(pt.lastLog) < pt.interval {
		pt.mu.Unlock()
		return false
	}
	pt.lastLog = now
	pt.mu.Unlock()

	done, rows, total := pt.Progress()
	e := pt.log.Info().
		Str("event", "progress").
		Str("phase", pt.phase).
		Int64("bytes_done", done).
		Int64("bytes_total", total).
		Int64("rows", rows).
		Float64("progress_pct", pt.ProgressPct())
	if eta := pt.ETA(); eta > 0 {
		e = e.Int64("eta_ms", eta.Milliseconds())
		if IsPrettyMode() {
			e = e.Str("eta_h", humanfmt.Duration(eta))
		}
	}
	e.Msg("import progress")
	return true
}

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]interface{}
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int64 adds an int64 field.
func (ce *CompletionEvent) Int64(key string, val int64) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Bytes adds byte count with optional human-readable companion.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	ce.fields[key] = bytes
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Bytes(bytes)
	}
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Count(n)
	}
	return ce
}

// RowRate adds a rows-per-second field computed over the event's elapsed time.
func (ce *CompletionEvent) RowRate(rows int64) *CompletionEvent {
	if ce.elapsed > 0 {
		ce.fields["rows_per_sec"] = float64(rows) / ce.elapsed.Seconds()
		if IsPrettyMode() {
			ce.fields["rows_per_sec_h"] = humanfmt.Rate(rows, ce.elapsed)
		}
	}
	return ce
}

// Throughput adds throughput fields.
func (ce *CompletionEvent) Throughput(bytes int64) *CompletionEvent {
	if ce.elapsed > 0 {
		bps := float64(bytes) / ce.elapsed.Seconds()
		ce.fields["throughput_bps"] = bps
		if IsPrettyMode() {
			ce.fields["throughput_h"] = humanfmt.Throughput(bytes, ce.elapsed)
		}
	}
	return ce
}

// Log emits the completion event.
func (ce *CompletionEvent) Log(msg string) {
	e := ce.log.Info().
		Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}

	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}

	e.Msg(msg)
}

// PhaseComplete logs a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// ImportComplete logs the end of one file import.
func ImportComplete(log zerolog.Logger, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "import_completed", "import", elapsed)
}
