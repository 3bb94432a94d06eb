package audit

import (
	"context"
	"sync"
)

// Logger is an audit sink. Sinks only append.
type Logger interface {
	// Log writes one record
	Log(ctx context.Context, record *Record) error

	// Close closes the sink and flushes any buffered records
	Close() error
}

// NoOpLogger discards every record
type NoOpLogger struct{}

// NewNoOpLogger returns a sink that does nothing
func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (l *NoOpLogger) Log(ctx context.Context, record *Record) error { return nil }

func (l *NoOpLogger) Close() error { return nil }

// MemoryLogger keeps records in process. Used in development and tests.
type MemoryLogger struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryLogger creates an empty in-memory sink
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log appends a copy of the record
func (l *MemoryLogger) Log(ctx context.Context, record *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, *record)
	return nil
}

// Records returns a copy of everything logged so far
func (l *MemoryLogger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records logged
func (l *MemoryLogger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *MemoryLogger) Close() error { return nil }
