package utils

import "github.com/google/uuid"

// NewRunID returns a short random identifier used to correlate the log lines
// of one scheduler tick or CLI invocation.
func NewRunID() string {
	return uuid.NewString()[:8]
}
