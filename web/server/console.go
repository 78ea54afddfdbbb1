package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/df07/go-surface-scatter/pkg/core"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	JobID     string    `json:"jobId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "info", "warning", "error"
}

// WebLogger implements core.Logger by sending messages to a console channel
type WebLogger struct {
	jobID       string
	consoleChan chan<- ConsoleMessage
}

// NewWebLogger creates a new web logger for a specific scatter run
func NewWebLogger(jobID string, consoleChan chan<- ConsoleMessage) core.Logger {
	return &WebLogger{
		jobID:       jobID,
		consoleChan: consoleChan,
	}
}

// Printf implements core.Logger interface
func (wl *WebLogger) Printf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	// Also write to stdout for server logs
	fmt.Print(message)

	// Send to web console if channel is available (non-blocking)
	if wl.consoleChan != nil {
		select {
		case wl.consoleChan <- ConsoleMessage{
			JobID:     wl.jobID,
			Message:   message,
			Timestamp: time.Now(),
			Level:     messageLevel(message),
		}:
		default:
			// Channel full, skip (don't block)
		}
	}
}

// messageLevel derives the console level from the loaders' "Warning:"/"Error:" prefixes
func messageLevel(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.HasPrefix(lower, "warning"):
		return "warning"
	case strings.HasPrefix(lower, "error"):
		return "error"
	default:
		return "info"
	}
}
