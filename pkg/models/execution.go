package models

import (
	"fmt"
	"time"
)

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusRunning:
		return next == ExecutionStatusPaused || next == ExecutionStatusCompleted || next == ExecutionStatusFailed
	case ExecutionStatusPaused:
		return next == ExecutionStatusRunning
	default:
		return false
	}
}

// StepStatus is the outcome of a single executed step.
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepResult records one executed step of a run.
type StepResult struct {
	StepID       string         `json:"step_id"`
	StepIndex    int            `json:"step_index"`
	StepType     StepType       `json:"step_type,omitempty"`
	Status       StepStatus     `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
	OutputData   map[string]any `json:"output_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// WorkflowExecution is one run of a workflow against a specific context.
type WorkflowExecution struct {
	ID            string           `json:"id"`
	WorkflowID    string           `json:"workflow_id"`
	Status        ExecutionStatus  `json:"status"`
	TriggerType   string           `json:"trigger_type"`
	TriggerData   ExecutionContext `json:"trigger_data"`
	StartedAt     time.Time        `json:"started_at"`
	PausedAt      *time.Time       `json:"paused_at,omitempty"`
	ResumeAt      *time.Time       `json:"resume_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	StepsExecuted []StepResult     `json:"steps_executed"`
}

// TransitionTo moves the execution to the next status, enforcing the state machine.
func (e *WorkflowExecution) TransitionTo(next ExecutionStatus) error {
	if !e.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, next)
	}

	e.Status = next

	return nil
}

// AppendStep adds a step result to the history.
func (e *WorkflowExecution) AppendStep(result StepResult) {
	e.StepsExecuted = append(e.StepsExecuted, result)
}

// LastStep returns the most recent step result, or nil if none ran yet.
func (e *WorkflowExecution) LastStep() *StepResult {
	if len(e.StepsExecuted) == 0 {
		return nil
	}

	return &e.StepsExecuted[len(e.StepsExecuted)-1]
}

// CountCompleted returns how many completed steps of the given type the execution recorded.
func (e *WorkflowExecution) CountCompleted(stepType StepType) int {
	count := 0

	for _, result := range e.StepsExecuted {
		if result.Status == StepStatusCompleted && result.StepType == stepType {
			count++
		}
	}

	return count
}
