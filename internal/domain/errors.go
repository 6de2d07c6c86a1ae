package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during scoring operations.
var (
	// ErrNegativeWeight indicates a weight configuration with a value
	// below zero.
	ErrNegativeWeight = errors.New("weight must be non-negative")

	// ErrEmptyDataset indicates that a stage received no claims to work on.
	ErrEmptyDataset = errors.New("empty claim dataset")

	// ErrInvalidConfiguration indicates that configuration is invalid or
	// incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// UnitExecutionError reports that a scoring unit failed during a run.
// The pool catches it at the unit boundary: the unit's contribution is
// recorded as an empty finding list and the run continues. It is surfaced
// to callers only through logs and the run insights, never as a run error.
type UnitExecutionError struct {
	// Unit is the name of the failed scoring unit.
	Unit string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface for UnitExecutionError.
func (e *UnitExecutionError) Error() string {
	return fmt.Sprintf("unit %s execution failed: %v", e.Unit, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *UnitExecutionError) Unwrap() error { return e.Err }

// StageError reports that a pipeline stage failed. The orchestrator
// catches it at the stage boundary, substitutes the stage's safe-empty
// output, and continues the run. There is no retry and no rollback.
type StageError struct {
	// Stage is the name of the failed pipeline stage.
	Stage string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface for StageError.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *StageError) Unwrap() error { return e.Err }

// FatalError is reserved for conditions with no safe default. No such
// condition exists in the current scope; any future fatal condition must
// abort the run and propagate to the caller rather than emitting a
// partially constructed score set.
type FatalError struct {
	// Err is the unrecoverable failure.
	Err error
}

// Error implements the error interface for FatalError.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *FatalError) Unwrap() error { return e.Err }
