package events

import (
	"log"
	"time"
)

// Sink persists run events.
type Sink interface {
	WriteOne(RunEvent) error
}

// Reporter stamps and fans out run events. A nil *Reporter is a valid
// no-op, so stages can emit unconditionally.
type Reporter struct {
	runID string
	sink  Sink
	logf  func(format string, args ...any)
	now   func() time.Time
}

// ReporterOption customizes a Reporter.
type ReporterOption func(*Reporter)

// WithSink attaches a persistent sink. Sink write failures are logged,
// not returned: event persistence never fails a run.
func WithSink(s Sink) ReporterOption {
	return func(r *Reporter) { r.sink = s }
}

// WithLogf overrides the console logger.
func WithLogf(logf func(format string, args ...any)) ReporterOption {
	return func(r *Reporter) { r.logf = logf }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) ReporterOption {
	return func(r *Reporter) { r.now = now }
}

// NewReporter creates a Reporter for the given run.
func NewReporter(runID string, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		runID: runID,
		logf:  log.Printf,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Emit records one event.
func (r *Reporter) Emit(stage string, typ EventType, message, detail string) {
	if r == nil {
		return
	}
	event := RunEvent{
		Timestamp: r.now().UTC(),
		RunID:     r.runID,
		Stage:     stage,
		Type:      typ,
		Message:   message,
		Detail:    detail,
	}
	if detail != "" {
		r.logf("[%s] %s: %s (%s)", stage, typ, message, detail)
	} else {
		r.logf("[%s] %s: %s", stage, typ, message)
	}
	if r.sink != nil {
		if err := r.sink.WriteOne(event); err != nil {
			r.logf("failed to persist event: %v", err)
		}
	}
}

// StageStart emits a stage_start event.
func (r *Reporter) StageStart(stage string) {
	r.Emit(stage, EventStageStart, "stage started", "")
}

// StageEnd emits a stage_end event.
func (r *Reporter) StageEnd(stage string) {
	r.Emit(stage, EventStageEnd, "stage completed", "")
}

// Step emits a step event.
func (r *Reporter) Step(stage, message string) {
	r.Emit(stage, EventStep, message, "")
}

// Fallback emits a fallback event.
func (r *Reporter) Fallback(stage, message, detail string) {
	r.Emit(stage, EventFallback, message, detail)
}
