package sandbox

import (
	"context"
	"time"
)

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Evaluation timeout
	MaxCallStackSize int           // Inner realm call stack limit
	EnableConsole    bool          // Allow console.log/warn/error
}

// Result holds evaluation result
type Result struct {
	Value    interface{}   // Return value, exported to Go
	Console  []LogEntry    // Console output
	Duration time.Duration // Evaluation time
	Err      error         // Evaluation error (realm-safe)
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error
	Message string    // Log message
	Time    time.Time // Timestamp
}

// Evaluator defines the sandboxed evaluation interface
type Evaluator interface {
	Evaluate(ctx context.Context, src string) (*Result, error)
	Close() error
}

// DefaultConfig returns the default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}
