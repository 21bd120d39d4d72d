package pipeline

import (
	"fmt"

	"github.com/google/uuid"
)

// CancelledError reports that a run was cancelled before or during a step.
// It is never retried; the run lands in the terminal cancelled status.
type CancelledError struct {
	RunID uuid.UUID
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("run %s cancelled: %v", e.RunID, e.Cause)
	}
	return fmt.Sprintf("run %s cancelled", e.RunID)
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// InvalidTransitionError reports an operation that does not fit the run's
// current step or status, such as resuming a run that is not awaiting
// review or advancing a failed run.
type InvalidTransitionError struct {
	RunID  uuid.UUID
	Step   Step
	Status Status
	Op     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s: run %s is at step %s with status %s", e.Op, e.RunID, e.Step, e.Status)
}
