package extraction

import "fmt"

// Failure reports that every cascade strategy was exhausted without
// recovering a single question. The orchestrator responds with one bounded
// regeneration retry before failing the run.
type Failure struct {
	Message string
	Cause   error
}

func (e *Failure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failed: %s", e.Message)
}

func (e *Failure) Unwrap() error {
	return e.Cause
}
