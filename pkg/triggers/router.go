// Package triggers turns business events into execution requests for the
// active workflows whose trigger step matches them.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// ErrUnknownTriggerType is returned for events no workflow can be triggered by.
var ErrUnknownTriggerType = errors.New("unknown trigger type")

// ValidationError lists why an event payload was rejected.
type ValidationError struct {
	TriggerType string
	Problems    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.TriggerType, strings.Join(e.Problems, "; "))
}

// IsValidationError checks if an error is a rejected event payload.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// WorkflowSource lists the workflows started by a trigger type.
type WorkflowSource interface {
	FetchActiveByTriggerType(ctx context.Context, triggerType string) ([]*models.Workflow, error)
}

// JobStatusChange is a job moving from one status to another.
type JobStatusChange struct {
	Job        map[string]any `json:"job"`
	FromStatus string         `json:"from_status,omitempty"`
	ToStatus   string         `json:"to_status"`
	Client     map[string]any `json:"client,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
}

// Request identifies one execution requested by an event.
type Request struct {
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
}

// Router matches business events against workflow triggers and publishes an
// execution.requested event per match.
type Router struct {
	workflows WorkflowSource
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	schemas   map[string]*gojsonschema.Schema
}

// NewRouter creates a Router and compiles the trigger payload schemas.
func NewRouter(workflows WorkflowSource, publisher eventbus.EventPublisher, logger *slog.Logger) (*Router, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	return &Router{
		workflows: workflows,
		publisher: publisher,
		logger:    logger.With("module", "trigger_router"),
		schemas:   schemas,
	}, nil
}

// OnJobStatusChanged requests executions for workflows triggered by the job status change.
func (r *Router) OnJobStatusChanged(ctx context.Context, change JobStatusChange) ([]Request, error) {
	job := make(map[string]any, len(change.Job)+1)
	for k, v := range change.Job {
		job[k] = v
	}

	if _, ok := job["status"]; !ok && change.ToStatus != "" {
		job["status"] = change.ToStatus
	}

	data := map[string]any{
		"job":       job,
		"to_status": change.ToStatus,
	}

	if change.FromStatus != "" {
		data["from_status"] = change.FromStatus
	}

	if change.Client != nil {
		data["client"] = change.Client
	}

	if change.UserID != "" {
		data[models.ContextKeyUserID] = change.UserID
	}

	return r.OnEvent(ctx, models.TriggerTypeJobStatusChanged, data)
}

// OnEvent validates data for triggerType and requests an execution for every
// matching active workflow. Requests already published are returned even when
// a later publish fails.
func (r *Router) OnEvent(ctx context.Context, triggerType string, data map[string]any) ([]Request, error) {
	schema, ok := r.schemas[triggerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTriggerType, triggerType)
	}

	err := validate(schema, triggerType, data)
	if err != nil {
		return nil, err
	}

	workflows, err := r.workflows.FetchActiveByTriggerType(ctx, triggerType)
	if err != nil {
		return nil, err
	}

	requests := make([]Request, 0, len(workflows))

	var errs []error

	for _, workflow := range workflows {
		if !matches(workflow, data) {
			continue
		}

		execCtx := models.ExecutionContext(data).Clone()
		execCtx[models.ContextKeyWorkflowID] = workflow.ID

		request := Request{WorkflowID: workflow.ID, ExecutionID: uuid.NewString()}

		err := r.publisher.Publish(ctx, workflow.ID, events.ExecutionRequested{
			BaseEvent:   events.NewBaseEvent(events.ExecutionRequestedEvent, workflow.ID),
			ExecutionID: request.ExecutionID,
			TriggerType: triggerType,
			Context:     execCtx,
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to request execution", "workflow_id", workflow.ID, "error", err)
			errs = append(errs, fmt.Errorf("workflow %s: %w", workflow.ID, err))

			continue
		}

		r.logger.InfoContext(ctx, "execution requested",
			"workflow_id", workflow.ID,
			"execution_id", request.ExecutionID,
			"trigger_type", triggerType,
		)

		requests = append(requests, request)
	}

	return requests, errors.Join(errs...)
}

func validate(schema *gojsonschema.Schema, triggerType string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return &ValidationError{TriggerType: triggerType, Problems: []string{err.Error()}}
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return &ValidationError{TriggerType: triggerType, Problems: problems}
}

// matches applies the optional status filters of the workflow's trigger step.
func matches(workflow *models.Workflow, data map[string]any) bool {
	trigger := workflow.Trigger()
	if trigger == nil {
		return false
	}

	cfg, ok := trigger.Config.(*models.TriggerConfig)
	if !ok {
		return false
	}

	if cfg.FromStatus != "" && !statusEquals(data["from_status"], cfg.FromStatus) {
		return false
	}

	if cfg.ToStatus != "" && !statusEquals(data["to_status"], cfg.ToStatus) {
		return false
	}

	return true
}

func statusEquals(value any, expected string) bool {
	status, ok := value.(string)

	return ok && strings.EqualFold(status, expected)
}
