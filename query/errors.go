package query

import (
	"fmt"
	"time"
)

// SubmissionError means the engine rejected the query before running it,
// usually a configuration problem such as a missing output location.
// Not retried automatically.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("query submission rejected: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// QueryFailedError means the engine ran the query and it failed or was
// cancelled. Carries the engine's reason string.
type QueryFailedError struct {
	ExecutionID string
	State       string
	Reason      string
}

func (e *QueryFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("query %s finished %s", e.ExecutionID, e.State)
	}
	return fmt.Sprintf("query %s finished %s: %s", e.ExecutionID, e.State, e.Reason)
}

// QueryTimeoutError means the deadline elapsed while polling. The caller
// may retry with a longer deadline.
type QueryTimeoutError struct {
	ExecutionID string
	Timeout     time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("query %s did not finish within %s", e.ExecutionID, e.Timeout)
}
