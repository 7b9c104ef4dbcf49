package observability

import "context"

// Tracer records the lifecycle of an analysis run: one trace per run,
// one span per pipeline stage, and a generation per LLM invocation.
//
// Trace hierarchy:
//
//	Run (Trace)
//	  └── Stage (Span): explore_repository, analyze_issues, combine_results
//	        ├── LLM call (Generation)
//	        └── Fallback (Event when a degraded path is taken)
type Tracer interface {
	StartTrace(runID string, opts TraceOptions) TraceContext
	StartStage(trace TraceContext, stage string, opts SpanOptions) SpanContext
	RecordGeneration(span SpanContext, gen GenerationInput)
	RecordFallback(span SpanContext, component string, reason string)
	EndStage(span SpanContext, status string, durationMs int64)
	CompleteTrace(trace TraceContext, opts CompleteOptions)
	Flush(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TraceContext holds the context for an active trace (run level).
type TraceContext struct {
	TraceID  string
	RunID    string
	Metadata map[string]string
}

// SpanContext holds the context for an active span (stage level).
type SpanContext struct {
	SpanID    string
	StageName string
	TraceID   string
}

// TraceOptions configures a new trace.
type TraceOptions struct {
	Repository string // owner/name
	RunID      string
}

// SpanOptions configures a new span.
type SpanOptions struct {
	Metadata map[string]string
}

// GenerationInput describes an LLM invocation to record.
type GenerationInput struct {
	Name       string // e.g. "repository-summary", "issue-patterns"
	Model      string
	Input      string
	Output     string
	Status     string // "completed" or "error"
	DurationMs int64
}

// CompleteOptions configures trace completion.
type CompleteOptions struct {
	Status     string // "completed" or "failed"
	ReportPath string
}
