package engine

import "fmt"

// RunError wraps the first stage failure to abort a Run, recording which
// chunk sequence triggered it. The worker pool is first-error-wins: once
// one chunk fails, in-flight work is cancelled and every later chunk's
// error is discarded in favor of this one.
type RunError struct {
	Sequence uint64
	Cause    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run aborted at chunk %d: %v", e.Sequence, e.Cause)
}

func (e *RunError) Unwrap() error { return e.Cause }

func newRunError(sequence uint64, cause error) *RunError {
	return &RunError{Sequence: sequence, Cause: cause}
}
