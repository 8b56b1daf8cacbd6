package models

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// StepType identifies the kind of work a step performs.
type StepType string

const (
	StepTypeTrigger   StepType = "trigger"
	StepTypeAction    StepType = "action"
	StepTypeCondition StepType = "condition"
	StepTypeDelay     StepType = "delay"
	StepTypeBranch    StepType = "branch"
)

// Trigger types understood by the trigger intake.
const (
	TriggerTypeManual           = "manual"
	TriggerTypeJobStatusChanged = "job_status_changed"
	TriggerTypeInvoiceOverdue   = "invoice_overdue"
	TriggerTypeClientCreated    = "client_created"
)

// ActionType identifies the channel an action step delivers through.
type ActionType string

const (
	ActionTypeEmail        ActionType = "email"
	ActionTypeSMS          ActionType = "sms"
	ActionTypeNotification ActionType = "notification"
	ActionTypeTask         ActionType = "task"
)

// DelayType is the unit of a delay step's value.
type DelayType string

const (
	DelayTypeMinutes DelayType = "minutes"
	DelayTypeHours   DelayType = "hours"
	DelayTypeDays    DelayType = "days"
	DelayTypeWeeks   DelayType = "weeks"
)

// StepConfig is the type-specific configuration of a step.
// The concrete type always matches the owning step's Type.
type StepConfig interface {
	StepType() StepType
}

// TriggerConfig describes the business event that starts the workflow.
// Trigger steps are never executed; the intake uses them to match events.
type TriggerConfig struct {
	TriggerType string `json:"triggerType"`
	FromStatus  string `json:"fromStatus,omitempty"`
	ToStatus    string `json:"toStatus,omitempty"`
}

func (*TriggerConfig) StepType() StepType { return StepTypeTrigger }

// ActionConfig holds the templated fields of an outbound action.
type ActionConfig struct {
	ActionType  ActionType `json:"actionType"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body,omitempty"`
	Message     string     `json:"message,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	DueInDays   int        `json:"dueInDays,omitempty"`
}

func (*ActionConfig) StepType() StepType { return StepTypeAction }

// ConditionConfig is a single comparison against a context value.
type ConditionConfig struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

func (*ConditionConfig) StepType() StepType { return StepTypeCondition }

// DelayConfig pauses the workflow for DelayValue units of DelayType.
type DelayConfig struct {
	DelayType  DelayType `json:"delayType"`
	DelayValue float64   `json:"delayValue"`
}

func (*DelayConfig) StepType() StepType { return StepTypeDelay }

// UnmarshalJSON accepts delayValue both as a number and as a numeric string,
// since builders commonly post form values as strings.
func (c *DelayConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		DelayType  DelayType `json:"delayType"`
		DelayValue any       `json:"delayValue"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	c.DelayType = raw.DelayType

	if raw.DelayValue == nil {
		c.DelayValue = 0

		return nil
	}

	value, err := cast.ToFloat64E(raw.DelayValue)
	if err != nil {
		return fmt.Errorf("invalid delayValue %v: %w", raw.DelayValue, err)
	}

	c.DelayValue = value

	return nil
}

// BranchConfig carries no options; the routing lives in Step.Branches.
type BranchConfig struct{}

func (*BranchConfig) StepType() StepType { return StepTypeBranch }

// Branch is a condition group with nested steps, authored on branch steps.
type Branch struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Logic      string             `json:"logic,omitempty"`
	Conditions []*ConditionConfig `json:"conditions"`
	Steps      []*Step            `json:"steps"`
}

// Step is one unit of work inside a workflow.
type Step struct {
	ID       string     `json:"id"`
	Type     StepType   `json:"type"`
	Name     string     `json:"name"`
	Config   StepConfig `json:"config"`
	Branches []*Branch  `json:"branches,omitempty"`
}

type stepJSON struct {
	ID       string          `json:"id"`
	Type     StepType        `json:"type"`
	Name     string          `json:"name"`
	Config   json.RawMessage `json:"config,omitempty"`
	Branches []*Branch       `json:"branches,omitempty"`
}

// UnmarshalJSON decodes config into the variant selected by the step type.
// Unknown step types keep a nil config and are skipped at execution time.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepJSON

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	s.ID = raw.ID
	s.Type = raw.Type
	s.Name = raw.Name
	s.Branches = raw.Branches
	s.Config = NewStepConfig(raw.Type)

	if s.Config == nil || len(raw.Config) == 0 || string(raw.Config) == "null" {
		return nil
	}

	err = json.Unmarshal(raw.Config, s.Config)
	if err != nil {
		return fmt.Errorf("invalid config for %s step %s: %w", raw.Type, raw.ID, err)
	}

	return nil
}

// MarshalJSON writes an empty config object for steps without configuration.
func (s Step) MarshalJSON() ([]byte, error) {
	raw := stepJSON{
		ID:       s.ID,
		Type:     s.Type,
		Name:     s.Name,
		Branches: s.Branches,
		Config:   json.RawMessage("{}"),
	}

	if s.Config != nil {
		config, err := json.Marshal(s.Config)
		if err != nil {
			return nil, err
		}

		raw.Config = config
	}

	return json.Marshal(raw)
}

// NewStepConfig returns an empty config variant for the step type, or nil when the type is unknown.
func NewStepConfig(stepType StepType) StepConfig {
	switch stepType {
	case StepTypeTrigger:
		return &TriggerConfig{}
	case StepTypeAction:
		return &ActionConfig{}
	case StepTypeCondition:
		return &ConditionConfig{}
	case StepTypeDelay:
		return &DelayConfig{}
	case StepTypeBranch:
		return &BranchConfig{}
	default:
		return nil
	}
}
