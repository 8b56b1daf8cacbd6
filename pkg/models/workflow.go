// Package models defines the core domain models for event-driven business workflows.
package models

import "time"

// WorkflowStatus represents whether a workflow reacts to incoming events.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Triggers start new executions
	WorkflowStatusInactive WorkflowStatus = "inactive" // Ignored by triggers, still testable
)

// Workflow is an ordered list of steps started by a business event.
type Workflow struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"                       validate:"required,min=3"`
	Description    string         `json:"description"`
	Status         WorkflowStatus `json:"status"                     validate:"required,oneof=active inactive"`
	Owner          string         `json:"owner"`
	Steps          []*Step        `json:"steps"`
	ExecutionCount int            `json:"execution_count"`
	LastExecutedAt *time.Time     `json:"last_executed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Trigger returns the first trigger step of the workflow, or nil if it has none.
func (w *Workflow) Trigger() *Step {
	for _, step := range w.Steps {
		if step != nil && step.Type == StepTypeTrigger {
			return step
		}
	}

	return nil
}

// TriggerType returns the configured trigger type, or "manual" for workflows without a trigger step.
func (w *Workflow) TriggerType() string {
	trigger := w.Trigger()
	if trigger == nil {
		return TriggerTypeManual
	}

	cfg, ok := trigger.Config.(*TriggerConfig)
	if !ok || cfg.TriggerType == "" {
		return TriggerTypeManual
	}

	return cfg.TriggerType
}

// IsActive reports whether triggers should start executions of the workflow.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}
