package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autoflow/pkg/conditions"
	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/template"
	"github.com/spf13/cast"
)

var (
	// ErrNoRecipient is returned when the context holds no address for the channel.
	ErrNoRecipient = errors.New("no recipient")

	// ErrUnknownActionType is returned for action steps with an unsupported actionType.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrInvalidConfig is returned when a step's config does not match its type.
	ErrInvalidConfig = errors.New("invalid step config")
)

// Interpreter executes action, condition and branch steps.
type Interpreter struct {
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithClock replaces time.Now, used to compute relative task due dates.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) {
		i.now = now
	}
}

// NewInterpreter creates an interpreter delivering actions through dispatcher.
func NewInterpreter(dispatcher dispatch.Dispatcher, logger *slog.Logger, opts ...Option) *Interpreter {
	interpreter := &Interpreter{
		dispatcher: dispatcher,
		logger:     logger.With("module", "step_interpreter"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(interpreter)
	}

	return interpreter
}

// ExecuteStep runs one step against the execution context. It never panics on
// bad input: every problem is reported as a failed Outcome.
func (i *Interpreter) ExecuteStep(ctx context.Context, step *models.Step, execCtx models.ExecutionContext) Outcome {
	if step == nil {
		return Skipped("empty step")
	}

	switch step.Type {
	case models.StepTypeAction:
		cfg, ok := step.Config.(*models.ActionConfig)
		if !ok {
			return Failed(fmt.Errorf("%w: action step %s", ErrInvalidConfig, step.ID))
		}

		return i.executeAction(ctx, step, cfg, execCtx)
	case models.StepTypeCondition:
		cfg, ok := step.Config.(*models.ConditionConfig)
		if !ok {
			return Failed(fmt.Errorf("%w: condition step %s", ErrInvalidConfig, step.ID))
		}

		return i.executeCondition(cfg, execCtx)
	case models.StepTypeBranch:
		return Succeeded(map[string]any{
			"branch":         true,
			"branches_count": len(step.Branches),
		})
	default:
		i.logger.DebugContext(ctx, "step type not executed by interpreter",
			"step_id", step.ID,
			"step_type", step.Type,
		)

		return Skipped(fmt.Sprintf("step type %q is not executed", step.Type))
	}
}

func (i *Interpreter) executeCondition(cfg *models.ConditionConfig, execCtx models.ExecutionContext) Outcome {
	actual := template.Resolve(cfg.Field, execCtx)
	met := conditions.Evaluate(cfg.Operator, cfg.Value, actual)

	result := map[string]any{
		"condition_met": met,
		"field":         cfg.Field,
		"operator":      cfg.Operator,
		"expected":      cfg.Value,
	}

	if !template.IsUndefined(actual) {
		result["actual"] = actual
	}

	return Succeeded(result)
}

func (i *Interpreter) executeAction(
	ctx context.Context,
	step *models.Step,
	cfg *models.ActionConfig,
	execCtx models.ExecutionContext,
) Outcome {
	logger := i.logger.With("step_id", step.ID, "action_type", cfg.ActionType)

	var (
		result *dispatch.Result
		err    error
		output = map[string]any{"action_type": string(cfg.ActionType)}
	)

	switch cfg.ActionType {
	case models.ActionTypeEmail:
		to := recipient(execCtx, "email")
		if to == "" {
			return Failed(fmt.Errorf("%w email found", ErrNoRecipient))
		}

		subject := template.Render(cfg.Subject, execCtx)
		body := template.Render(cfg.Body, execCtx)
		output["to"] = to
		output["subject"] = subject

		result, err = i.dispatcher.SendEmail(ctx, to, subject, body)
	case models.ActionTypeSMS:
		to := recipient(execCtx, "phone")
		if to == "" {
			return Failed(fmt.Errorf("%w phone found", ErrNoRecipient))
		}

		output["to"] = to

		result, err = i.dispatcher.SendSMS(ctx, to, template.Render(cfg.Message, execCtx))
	case models.ActionTypeNotification:
		notification := dispatch.Notification{
			UserID:  execCtx.UserID(),
			Title:   template.Render(cfg.Title, execCtx),
			Message: template.Render(cfg.Message, execCtx),
			Data:    notificationData(execCtx),
		}
		output["user_id"] = notification.UserID

		result, err = i.dispatcher.SendNotification(ctx, notification)
	case models.ActionTypeTask:
		task := i.buildTask(cfg, execCtx)
		output["title"] = task.Title
		output["assignee"] = task.Assignee

		result, err = i.dispatcher.CreateTask(ctx, task)
	default:
		return Failed(fmt.Errorf("%w: %q", ErrUnknownActionType, cfg.ActionType))
	}

	if err != nil {
		logger.WarnContext(ctx, "action dispatch failed", "error", err)

		return Failed(err)
	}

	if result != nil {
		if result.ID != "" {
			output["id"] = result.ID
		}

		if len(result.Payload) > 0 {
			output["payload"] = result.Payload
		}
	}

	logger.InfoContext(ctx, "action dispatched")

	return Succeeded(output)
}

func (i *Interpreter) buildTask(cfg *models.ActionConfig, execCtx models.ExecutionContext) dispatch.Task {
	assignee := template.Render(cfg.Assignee, execCtx)
	if assignee == "" {
		assignee = execCtx.UserID()
	}

	priority := cfg.Priority
	if priority == "" {
		priority = "medium"
	}

	task := dispatch.Task{
		Title:       template.Render(cfg.Title, execCtx),
		Description: template.Render(cfg.Description, execCtx),
		Assignee:    assignee,
		Priority:    priority,
	}

	switch {
	case cfg.DueDate != "":
		if due, ok := template.ParseTimestamp(template.Render(cfg.DueDate, execCtx)); ok {
			due = due.UTC()
			task.DueDate = &due
		}
	case cfg.DueInDays > 0:
		due := i.now().UTC().AddDate(0, 0, cfg.DueInDays)
		task.DueDate = &due
	}

	return task
}

// recipient looks the address up under client, then under record as client_<kind>.
func recipient(execCtx models.ExecutionContext, kind string) string {
	if value, ok := template.Lookup("client."+kind, execCtx); ok {
		if to := cast.ToString(value); to != "" {
			return to
		}
	}

	if value, ok := template.Lookup("record.client_"+kind, execCtx); ok {
		return cast.ToString(value)
	}

	return ""
}

func notificationData(execCtx models.ExecutionContext) map[string]any {
	data := map[string]any{}

	for _, key := range []string{models.ContextKeyWorkflowID, "job", "client", "invoice"} {
		if value, ok := execCtx[key]; ok {
			data[key] = value
		}
	}

	return data
}
