package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventScan      EventType = "scan"
	EventMeta      EventType = "meta"
	EventGroup     EventType = "group"
	EventVerify    EventType = "verify"
	EventCollision EventType = "collision"
	EventSelect    EventType = "select"
	EventFlag      EventType = "flag"
	EventMove      EventType = "move"
	EventSkip      EventType = "skip"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	Path         string            `json:"path,omitempty"`
	OriginalPath string            `json:"original_path,omitempty"`
	DestPath     string            `json:"dest_path,omitempty"`
	Fingerprint  string            `json:"fingerprint,omitempty"`
	Action       string            `json:"action,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	SizeBytes    int64             `json:"size_bytes,omitempty"`
	Duration     int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate filename with timestamp
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Open file for writing
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	// Filter by minimum level
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil // Skip events below minimum level
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogScan logs a file discovery event
func (l *EventLogger) LogScan(path string, sizeBytes int64, unchanged bool) error {
	level := LevelDebug
	action := "fingerprint"
	if unchanged {
		action = "skip-unchanged"
	}

	return l.Log(&Event{
		Level:     level,
		Event:     EventScan,
		Path:      path,
		Action:    action,
		SizeBytes: sizeBytes,
	})
}

// LogMeta logs a metadata extraction event
func (l *EventLogger) LogMeta(path string, captureDate *time.Time, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	extra := map[string]string{}
	if captureDate != nil {
		extra["capture_date"] = captureDate.Format(time.RFC3339)
	}

	return l.Log(&Event{
		Level: level,
		Event: EventMeta,
		Path:  path,
		Error: errMsg,
		Extra: extra,
	})
}

// LogGroup logs a candidate group event
func (l *EventLogger) LogGroup(fingerprint string, memberCount int) error {
	return l.Log(&Event{
		Level:       LevelInfo,
		Event:       EventGroup,
		Fingerprint: fingerprint,
		Extra: map[string]string{
			"member_count": fmt.Sprintf("%d", memberCount),
		},
	})
}

// LogVerify logs a binary verification outcome for one group
func (l *EventLogger) LogVerify(fingerprint string, candidates, verified int) error {
	return l.Log(&Event{
		Level:       LevelInfo,
		Event:       EventVerify,
		Fingerprint: fingerprint,
		Extra: map[string]string{
			"candidates": fmt.Sprintf("%d", candidates),
			"verified":   fmt.Sprintf("%d", verified),
		},
	})
}

// LogCollision logs a fingerprint collision: files that matched on
// fingerprint but failed byte-for-byte verification
func (l *EventLogger) LogCollision(fingerprint, path string) error {
	return l.Log(&Event{
		Level:       LevelWarning,
		Event:       EventCollision,
		Fingerprint: fingerprint,
		Path:        path,
		Reason:      "fingerprint match failed binary verification",
	})
}

// LogSelect logs the canonical-file decision for a verified group
func (l *EventLogger) LogSelect(fingerprint, originalPath string, duplicateCount int) error {
	return l.Log(&Event{
		Level:        LevelInfo,
		Event:        EventSelect,
		Fingerprint:  fingerprint,
		OriginalPath: originalPath,
		Extra: map[string]string{
			"duplicate_count": fmt.Sprintf("%d", duplicateCount),
		},
	})
}

// LogFlag logs a deletion-flagging event
func (l *EventLogger) LogFlag(path, originalPath string) error {
	return l.Log(&Event{
		Level:        LevelInfo,
		Event:        EventFlag,
		Path:         path,
		OriginalPath: originalPath,
	})
}

// LogMove logs a quarantine move event
func (l *EventLogger) LogMove(path, destPath string, sizeBytes int64, attempts int, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:     level,
		Event:     EventMove,
		Path:      path,
		DestPath:  destPath,
		SizeBytes: sizeBytes,
		Duration:  duration.Milliseconds(),
		Error:     errMsg,
		Extra: map[string]string{
			"attempts": fmt.Sprintf("%d", attempts),
		},
	})
}

// LogSkip logs a skipped file with a reason
func (l *EventLogger) LogSkip(path, reason string) error {
	return l.Log(&Event{
		Level:  LevelWarning,
		Event:  EventSkip,
		Path:   path,
		Reason: reason,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
