package audit

import (
	"context"
	"fmt"
)

// MultiLogger fans records out to several sinks. Log returns only after every
// sink has been written, so the caller's context stays valid for the whole
// fan-out.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a fan-out sink
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes the record to every sink. Every sink is tried and the first
// error is returned.
func (m *MultiLogger) Log(ctx context.Context, record *Record) error {
	var firstErr error

	for _, logger := range m.loggers {
		if err := logger.Log(ctx, record); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Close closes all sinks
func (m *MultiLogger) Close() error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close logger: %w", err)
			}
		}
	}

	return firstErr
}
