package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskTimeout marks a task abandoned past its per-task deadline.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrEmptyResult marks a fan-out stage that produced zero usable
	// results. Feeding nothing into the next stage is a pipeline-level
	// failure, not merely an empty result.
	ErrEmptyResult = errors.New("stage produced no usable results")
)

// ConfigError is an invalid pipeline configuration, rejected before any
// task is dispatched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// StageError identifies which pipeline stage failed and why. The caller
// always sees either a complete result or exactly one of these.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageFailure(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
