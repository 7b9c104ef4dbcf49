// Package events records the progress of an analysis run. Each pipeline
// stage and agent step emits a RunEvent; sinks persist them as JSONL for
// later inspection, and the Reporter mirrors them to the console log.
package events

import (
	"time"
)

// EventType identifies the category of a run event.
type EventType string

const (
	// EventStageStart marks a pipeline stage beginning.
	EventStageStart EventType = "stage_start"
	// EventStageEnd marks a pipeline stage completing.
	EventStageEnd EventType = "stage_end"
	// EventStep is a fine-grained step inside a stage (a tool call, a fetch).
	EventStep EventType = "step"
	// EventLLMCall records an LLM generation.
	EventLLMCall EventType = "llm_call"
	// EventFallback records a degraded path being taken (missing README,
	// unparseable LLM reply, failed fetch).
	EventFallback EventType = "fallback"
	// EventError is a non-fatal error surfaced during the run.
	EventError EventType = "error"
)

// RunEvent is one entry in an analysis run's event stream.
type RunEvent struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// RunID identifies the analysis run.
	RunID string `json:"run_id"`

	// Stage is the pipeline stage emitting the event
	// (explore_repository, analyze_issues, combine_results).
	Stage string `json:"stage"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Message is a short human-readable description.
	Message string `json:"message,omitempty"`

	// Detail carries extra context (tool name, file path, error text).
	Detail string `json:"detail,omitempty"`
}

// ValidEventTypes returns all valid event type values.
func ValidEventTypes() []EventType {
	return []EventType{
		EventStageStart,
		EventStageEnd,
		EventStep,
		EventLLMCall,
		EventFallback,
		EventError,
	}
}

// IsValidEventType checks if the given string is a valid event type.
func IsValidEventType(s string) bool {
	for _, t := range ValidEventTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}
