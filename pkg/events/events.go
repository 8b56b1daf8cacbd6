// Package events defines event types and structures for execution requests and workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every autoflow event; consumers dispatch on the event type metadata.
const Topic = "autoflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ExecutionRequestedEvent asks a worker to run a workflow.
	ExecutionRequestedEvent EventType = "execution.requested"

	// Workflow execution lifecycle events.
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionPausedEvent    EventType = "workflow.execution.paused"
	WorkflowExecutionResumedEvent   EventType = "workflow.execution.resumed"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ExecutionRequested is published by the trigger intake for every matching workflow.
type ExecutionRequested struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	TriggerType string         `json:"trigger_type"`
	Context     map[string]any `json:"context"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TriggerType string `json:"trigger_type"`
	IsTest      bool   `json:"is_test"`
}

func (w WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionPaused struct {
	BaseEvent

	ExecutionID    string    `json:"execution_id"`
	StepID         string    `json:"step_id"`
	ResumeFromStep int       `json:"resume_from_step"`
	ResumeAt       time.Time `json:"resume_at"`
}

func (w WorkflowExecutionPaused) GetType() EventType {
	return WorkflowExecutionPausedEvent
}

type WorkflowExecutionResumed struct {
	BaseEvent

	ExecutionID    string `json:"execution_id"`
	ResumeFromStep int    `json:"resume_from_step"`
}

func (w WorkflowExecutionResumed) GetType() EventType {
	return WorkflowExecutionResumedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID   string        `json:"execution_id"`
	StepsExecuted int           `json:"steps_executed"`
	Duration      time.Duration `json:"duration"`
}

func (w WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id,omitempty"`
	StepIndex   int    `json:"step_index"`
	Error       string `json:"error"`
}

func (w WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

// NewBaseEvent creates a BaseEvent with a fresh id and timestamp.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// New returns an empty event value for the type, ready to be decoded into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case ExecutionRequestedEvent:
		return &ExecutionRequested{}, true
	case WorkflowExecutionStartedEvent:
		return &WorkflowExecutionStarted{}, true
	case WorkflowExecutionPausedEvent:
		return &WorkflowExecutionPaused{}, true
	case WorkflowExecutionResumedEvent:
		return &WorkflowExecutionResumed{}, true
	case WorkflowExecutionCompletedEvent:
		return &WorkflowExecutionCompleted{}, true
	case WorkflowExecutionFailedEvent:
		return &WorkflowExecutionFailed{}, true
	default:
		return nil, false
	}
}
