package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrBadRequest is returned when the request cannot be decoded.
	ErrBadRequest = errors.New("socialtable: malformed request")

	// ErrFinished is returned when an execution is run a second time.
	ErrFinished = errors.New("socialtable: execution already ran")

	// ErrStepPanicked wraps a panic recovered from a step.
	ErrStepPanicked = errors.New("socialtable: step panicked")
)

// StepError reports the step a pipeline failed in. Steps that completed
// before it are not rolled back.
type StepError struct {
	Pipeline string
	Step     string
	Index    int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline %s: step %d (%s): %v", e.Pipeline, e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
