package engine

import (
	"errors"
	"fmt"

	"github.com/costlens/costlens/query"
)

// Error is the caller-facing failure shape: a stable code plus a
// human-readable suggestion, never a raw engine exception.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Stable error codes.
const (
	CodeSubmissionRejected = "SUBMISSION_REJECTED"
	CodeQueryFailed        = "QUERY_FAILED"
	CodeQueryTimeout       = "QUERY_TIMEOUT"
	CodeInternal           = "INTERNAL"
)

// wrapError maps driver errors onto the stable taxonomy.
func wrapError(err error) *Error {
	var submission *query.SubmissionError
	if errors.As(err, &submission) {
		return &Error{
			Code:       CodeSubmissionRejected,
			Message:    err.Error(),
			Suggestion: "check the Athena database, workgroup, and output location configuration",
			Err:        err,
		}
	}

	var failed *query.QueryFailedError
	if errors.As(err, &failed) {
		return &Error{
			Code:       CodeQueryFailed,
			Message:    err.Error(),
			Suggestion: "the analytical engine rejected the statement; inspect the reason and the table schemas",
			Err:        err,
		}
	}

	var timeout *query.QueryTimeoutError
	if errors.As(err, &timeout) {
		return &Error{
			Code:       CodeQueryTimeout,
			Message:    err.Error(),
			Suggestion: "retry with a longer query timeout or a narrower time window",
			Err:        err,
		}
	}

	return &Error{
		Code:    CodeInternal,
		Message: err.Error(),
		Err:     err,
	}
}
