package staging

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped indicates the Logger reached a terminal state.
	ErrStopped = errors.New("logger stopped")
	// ErrInvalidConfig indicates a configuration can't be used.
	ErrInvalidConfig = errors.New("invalid staging config")
)

// SinkError is returned when the sink fails to persist a block.
type SinkError struct {
	Size int
	Err  error
}

// Error implements error.
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink write of %d bytes: %v", e.Size, e.Err)
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error { return e.Err }

// SourceError is returned when the source fails to deliver bytes.
type SourceError struct {
	Err error
}

// Error implements error.
func (e *SourceError) Error() string {
	return fmt.Sprintf("source poll: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }
