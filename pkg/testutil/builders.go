// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestWorkflow creates an active workflow with the given steps and default values that can be overridden.
func CreateTestWorkflow(steps []*models.Step, overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:          uuid.NewString(),
		Name:        "Test Workflow",
		Description: "Workflow used in tests",
		Status:      models.WorkflowStatusActive,
		Owner:       "test-user",
		Steps:       steps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// TriggerStep creates a trigger step for the given trigger type.
func TriggerStep(id, triggerType string) *models.Step {
	return &models.Step{
		ID:     id,
		Type:   models.StepTypeTrigger,
		Name:   "When " + triggerType,
		Config: &models.TriggerConfig{TriggerType: triggerType},
	}
}

// EmailStep creates an email action step.
func EmailStep(id, subject, body string) *models.Step {
	return &models.Step{
		ID:     id,
		Type:   models.StepTypeAction,
		Name:   "Send email",
		Config: &models.ActionConfig{ActionType: models.ActionTypeEmail, Subject: subject, Body: body},
	}
}

// SMSStep creates an SMS action step.
func SMSStep(id, message string) *models.Step {
	return &models.Step{
		ID:     id,
		Type:   models.StepTypeAction,
		Name:   "Send SMS",
		Config: &models.ActionConfig{ActionType: models.ActionTypeSMS, Message: message},
	}
}

// TaskStep creates a task action step.
func TaskStep(id, title string) *models.Step {
	return &models.Step{
		ID:     id,
		Type:   models.StepTypeAction,
		Name:   "Create task",
		Config: &models.ActionConfig{ActionType: models.ActionTypeTask, Title: title, Priority: "medium"},
	}
}

// DelayStep creates a delay step.
func DelayStep(id string, delayType models.DelayType, value float64) *models.Step {
	return &models.Step{
		ID:     id,
		Type:   models.StepTypeDelay,
		Name:   "Wait",
		Config: &models.DelayConfig{DelayType: delayType, DelayValue: value},
	}
}

// ConditionStep creates a condition step.
func ConditionStep(id, field, operator string, value any) *models.Step {
	return &models.Step{
		ID:     id,
		Type:   models.StepTypeCondition,
		Name:   "Check " + field,
		Config: &models.ConditionConfig{Field: field, Operator: operator, Value: value},
	}
}

// ClientContext returns an execution context for a client with email and phone.
func ClientContext() models.ExecutionContext {
	return models.ExecutionContext{
		"client": map[string]any{
			"name":  "Jane Doe",
			"email": "jane@example.com",
			"phone": "+15550100",
		},
		"job": map[string]any{
			"id":     "job-1",
			"status": "completed",
		},
		"user_id": "user-1",
	}
}
