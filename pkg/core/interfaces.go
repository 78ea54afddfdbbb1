package core

import "log"

// Logger interface for scatter logging
type Logger interface {
	Printf(format string, args ...interface{})
}

// StdLogger forwards to the standard library logger
type StdLogger struct{}

// Printf implements Logger
func (StdLogger) Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// NopLogger discards everything
type NopLogger struct{}

// Printf implements Logger
func (NopLogger) Printf(format string, args ...interface{}) {}
