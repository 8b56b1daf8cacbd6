package models

import (
	"errors"
	"time"
)

// ErrInvalidTransition is returned when a status change is not allowed by the state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// ResumeStatus is the processing state of a scheduled resume.
type ResumeStatus string

const (
	ResumeStatusPending    ResumeStatus = "pending"
	ResumeStatusProcessing ResumeStatus = "processing"
	ResumeStatusCompleted  ResumeStatus = "completed"
	ResumeStatusFailed     ResumeStatus = "failed"
)

// ScheduledResume marks a paused execution that must continue at ResumeAt
// from step ResumeFromStep.
type ScheduledResume struct {
	ID             string           `json:"id"`
	WorkflowID     string           `json:"workflow_id"`
	ExecutionID    string           `json:"execution_id"`
	ResumeAt       time.Time        `json:"resume_at"`
	ResumeFromStep int              `json:"resume_from_step"`
	Context        ExecutionContext `json:"context"`
	Status         ResumeStatus     `json:"status"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsDue reports whether a pending resume should be picked up at now.
func (r *ScheduledResume) IsDue(now time.Time) bool {
	return r.Status == ResumeStatusPending && !r.ResumeAt.After(now)
}
