package cluster

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBackend = errors.New("unknown cluster backend")
	ErrMissingTool    = errors.New("scheduler command not found")
	ErrInvalidSpec    = errors.New("invalid job spec")
	ErrEmptyHandle    = errors.New("empty job handle")
)

// SubmissionError is returned when a scheduler rejects a job.
type SubmissionError struct {
	Backend string
	// Output holds what the submit command printed, if anything.
	Output string
	Err    error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("%s: submission failed: %v", e.Backend, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ClusterImplementationError is returned when a backend cannot be resolved
// or cannot reach its scheduler.
type ClusterImplementationError struct {
	Backend string
	Op      string
	Err     error
}

func (e *ClusterImplementationError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("cluster %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *ClusterImplementationError) Unwrap() error { return e.Err }

// IsSubmissionError reports whether err carries a SubmissionError.
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// IsImplementationError reports whether err carries a ClusterImplementationError.
func IsImplementationError(err error) bool {
	var ce *ClusterImplementationError
	return errors.As(err, &ce)
}
