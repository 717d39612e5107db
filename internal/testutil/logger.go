package testutil

import (
	"fmt"
	"sync"
)

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

// CaptureLogger records every log call for assertions. Safe for concurrent
// use.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (l *CaptureLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args) }
func (l *CaptureLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }
func (l *CaptureLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *CaptureLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }

func (l *CaptureLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

// Entries returns a copy of everything logged so far.
func (l *CaptureLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry{}, l.entries...)
}

// Contains reports whether any entry's message matches exactly.
func (l *CaptureLogger) Contains(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// String renders the captured log for test failure output.
func (l *CaptureLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := ""
	for _, e := range l.entries {
		out += fmt.Sprintf("%s %s %v\n", e.Level, e.Message, e.Args)
	}
	return out
}
