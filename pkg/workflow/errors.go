package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutionNotResumable is returned when a resume targets an execution that is not paused.
	ErrExecutionNotResumable = errors.New("execution is not paused")

	// ErrExecutionExists is returned when a fresh run reuses the id of a stored execution.
	ErrExecutionExists = errors.New("execution already exists")
)

// DefinitionError reports a workflow that cannot be run because its definition is missing.
type DefinitionError struct {
	WorkflowID string
	Err        error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("workflow %s: %v", e.WorkflowID, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// StepExecutionError reports the step that halted a run.
type StepExecutionError struct {
	StepID    string
	StepIndex int
	Err       error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s (index %d) failed: %v", e.StepID, e.StepIndex, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

// IsDefinitionError checks if an error is caused by a missing workflow definition.
func IsDefinitionError(err error) bool {
	var definitionErr *DefinitionError

	return errors.As(err, &definitionErr)
}
