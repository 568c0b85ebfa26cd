// Package telemetry provides the adapter's ambient logging: a thin
// wrapper over the standard log package that tags every line with a
// per-connection correlation id.
package telemetry

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Logger tags every line with the connection id it was constructed
// for.
type Logger struct {
	connID string
}

// New creates a Logger with a fresh connection id.
func New() *Logger {
	return &Logger{connID: uuid.New().String()}
}

// ConnID returns the correlation id this logger tags every line with.
func (l *Logger) ConnID() string { return l.connID }

func (l *Logger) Printf(format string, args ...any) {
	log.Printf("[spannerflux %s] %s", l.connID, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	log.Printf("[spannerflux %s] ERROR: %s", l.connID, fmt.Sprintf(format, args...))
}
