package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink writes RunEvents to a JSONL file.
// It is safe for concurrent use from multiple goroutines.
type FileSink struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewFileSink creates a FileSink writing to dir/<runID>.events.jsonl.
// The directory is created if missing; an existing file is appended to.
func NewFileSink(dir, runID string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create events directory: %w", err)
	}
	path := filepath.Join(dir, runID+".events.jsonl")

	// 0600 because tool results may carry repository content.
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}

	return &FileSink{
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Write appends a batch of events, one JSON line each.
func (s *FileSink) Write(events []RunEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if _, err := s.writer.Write(data); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		if err := s.writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}

	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush events: %w", err)
	}
	return nil
}

// WriteOne appends a single event.
func (s *FileSink) WriteOne(event RunEvent) error {
	return s.Write([]RunEvent{event})
}

// Close flushes any remaining data and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	if err := s.writer.Flush(); err != nil {
		_ = s.file.Close()
		s.file = nil
		return fmt.Errorf("failed to flush before close: %w", err)
	}
	if err := s.file.Close(); err != nil {
		s.file = nil
		return fmt.Errorf("failed to close events file: %w", err)
	}
	s.file = nil
	return nil
}

// Path returns the path to the events file.
func (s *FileSink) Path() string {
	return s.path
}

// ReadEvents reads all events from a JSONL file.
func ReadEvents(path string) ([]RunEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var events []RunEvent
	scanner := bufio.NewScanner(file)

	// Large tool results can produce long lines.
	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event RunEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("failed to parse event on line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	return events, nil
}

// FilterByType filters events by event type.
func FilterByType(events []RunEvent, types ...EventType) []RunEvent {
	if len(types) == 0 {
		return events
	}
	typeSet := make(map[EventType]bool)
	for _, t := range types {
		typeSet[t] = true
	}
	var filtered []RunEvent
	for _, event := range events {
		if typeSet[event.Type] {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// FilterByStage filters events by pipeline stage.
// An empty stage returns all events.
func FilterByStage(events []RunEvent, stage string) []RunEvent {
	if stage == "" {
		return events
	}
	var filtered []RunEvent
	for _, event := range events {
		if event.Stage == stage {
			filtered = append(filtered, event)
		}
	}
	return filtered
}
