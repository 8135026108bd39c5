package utils

import (
	"fmt"
	"strings"
)

// MaxErrorSummary bounds error text returned to callers.
const MaxErrorSummary = 200

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// Summarize returns a single-line rendering of err cut to at most max runes.
func Summarize(err error, max int) string {
	if err == nil {
		return ""
	}
	if max <= 0 {
		max = MaxErrorSummary
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
