package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across the pipeline
var (
	ErrImportanceMapUnavailable = errors.New("importance map unavailable")
	ErrChunkNotFound            = errors.New("chunk not found")
	ErrSymbolNotFound           = errors.New("symbol not found")
	ErrGeneratorUnavailable     = errors.New("text generator unavailable")
)

// ValidationError reports malformed input. It is never retried and is
// surfaced to the caller before any backend call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RequestTimeoutError reports that the end-to-end request deadline expired.
// In-flight branch work is abandoned; the request fails fast rather than
// returning a silently degraded partial answer.
type RequestTimeoutError struct {
	Timeout time.Duration
	Stage   string // Pipeline stage that was running when the deadline hit
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s during %s", e.Timeout, e.Stage)
}

// StrategyExecutionError reports one backend branch failing or timing out.
// It is isolated to its branch: the branch contributes zero hits and the
// request continues with the remaining strategies.
type StrategyExecutionError struct {
	Strategy StrategyID
	Err      error
}

func (e *StrategyExecutionError) Error() string {
	return fmt.Sprintf("strategy %s failed: %v", e.Strategy, e.Err)
}

func (e *StrategyExecutionError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRequestTimeout reports whether err is an end-to-end timeout.
func IsRequestTimeout(err error) bool {
	var te *RequestTimeoutError
	return errors.As(err, &te)
}
