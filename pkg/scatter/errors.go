package scatter

import "errors"

var (
	// ErrNoTargets is returned when a pass is started without any target surface
	ErrNoTargets = errors.New("no target surfaces set")

	// ErrNoValidCandidates is returned when no candidate has a positive weight
	ErrNoValidCandidates = errors.New("no valid candidates with weight > 0")

	// ErrInvalidConfig wraps every config validation failure
	ErrInvalidConfig = errors.New("invalid scatter config")
)
