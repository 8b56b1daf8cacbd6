// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution log was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrResumeNotFound indicates a scheduled resume was not found.
	ErrResumeNotFound = errors.New("scheduled resume not found")

	// ErrResumeAlreadyScheduled indicates the execution already has a pending resume.
	ErrResumeAlreadyScheduled = errors.New("execution already has a pending resume")

	// ErrClaimConflict indicates a scheduled resume was claimed by someone else first.
	ErrClaimConflict = errors.New("scheduled resume already claimed")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// ResumeError wraps scheduled resume errors with additional context.
type ResumeError struct {
	Op       string
	ResumeID string
	Err      error
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("%s operation failed for scheduled resume %s: %v", e.Op, e.ResumeID, e.Err)
}

func (e *ResumeError) Unwrap() error {
	return e.Err
}

// NewResumeError creates a new scheduled resume error with context.
func NewResumeError(op, resumeID string, err error) *ResumeError {
	return &ResumeError{Op: op, ResumeID: resumeID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsResumeNotFound checks if an error indicates a scheduled resume was not found.
func IsResumeNotFound(err error) bool {
	return errors.Is(err, ErrResumeNotFound)
}

// IsClaimConflict checks if an error indicates a lost resume claim.
func IsClaimConflict(err error) bool {
	return errors.Is(err, ErrClaimConflict)
}

// PersistenceError marks a failed authoritative write: a state transition or a
// scheduled resume that the engine cannot continue without.
type PersistenceError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new authoritative write error with context.
func NewPersistenceError(op, executionID string, err error) *PersistenceError {
	return &PersistenceError{Op: op, ExecutionID: executionID, Err: err}
}

// IsPersistenceError checks if an error is an authoritative write failure.
func IsPersistenceError(err error) bool {
	var persistenceErr *PersistenceError

	return errors.As(err, &persistenceErr)
}
