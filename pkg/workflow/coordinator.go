// Package workflow runs workflow definitions step by step and manages their stored definitions.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autoflow/pkg/delay"
	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/executionlog"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/otelhelper"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/steps"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StepInterpreter executes a single non-delay step.
type StepInterpreter interface {
	ExecuteStep(ctx context.Context, step *models.Step, execCtx models.ExecutionContext) steps.Outcome
}

// DelayHandler decides what a delay step does to the run.
type DelayHandler interface {
	Handle(ctx context.Context, step *models.Step, index int, execution *models.WorkflowExecution) (delay.Decision, error)
}

// Coordinator walks a workflow's steps in order for one execution at a time.
// A Coordinator is safe for concurrent use by several runs.
type Coordinator struct {
	workflows   persistence.WorkflowRepository
	executions  persistence.ExecutionRepository
	interpreter StepInterpreter
	delays      DelayHandler
	log         *executionlog.Logger
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	workerID    string
}

// Option configures a Coordinator.
type Option func(*coordinatorOptions)

type coordinatorOptions struct {
	publisher   eventbus.EventPublisher
	now         func() time.Time
	sleeper     delay.Sleeper
	workerID    string
	interpreter StepInterpreter
}

// WithPublisher publishes lifecycle events on the given bus.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *coordinatorOptions) {
		o.publisher = publisher
	}
}

// WithClock replaces time.Now for the coordinator and its delay scheduler.
func WithClock(now func() time.Time) Option {
	return func(o *coordinatorOptions) {
		o.now = now
	}
}

// WithSleeper replaces the in-process wait used by inline delays.
func WithSleeper(sleeper delay.Sleeper) Option {
	return func(o *coordinatorOptions) {
		o.sleeper = sleeper
	}
}

// WithWorkerID tags published events with the worker that produced them.
func WithWorkerID(workerID string) Option {
	return func(o *coordinatorOptions) {
		o.workerID = workerID
	}
}

// WithInterpreter replaces the step interpreter built from the dispatcher.
func WithInterpreter(interpreter StepInterpreter) Option {
	return func(o *coordinatorOptions) {
		o.interpreter = interpreter
	}
}

// NewCoordinator wires the interpreter, the delay scheduler and the execution log on top of store.
func NewCoordinator(
	store persistence.Persistence,
	dispatcher dispatch.Dispatcher,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	options := coordinatorOptions{
		publisher: eventbus.NopPublisher{},
		now:       time.Now,
		sleeper:   delay.Sleep,
	}

	for _, opt := range opts {
		opt(&options)
	}

	executionLog := executionlog.NewLogger(store.ExecutionRepository(), logger)

	interpreter := options.interpreter
	if interpreter == nil {
		interpreter = steps.NewInterpreter(dispatcher, logger, steps.WithClock(options.now))
	}

	return &Coordinator{
		workflows:   store.WorkflowRepository(),
		executions:  store.ExecutionRepository(),
		interpreter: interpreter,
		delays: delay.NewScheduler(store.ResumeRepository(), executionLog, logger,
			delay.WithClock(options.now),
			delay.WithSleeper(options.sleeper),
		),
		log:       executionLog,
		publisher: options.publisher,
		logger:    logger.With("module", "workflow_coordinator"),
		tracer:    otelhelper.Tracer(),
		now:       options.now,
		workerID:  options.workerID,
	}
}

// RunOption configures a single Run.
type RunOption func(*runOptions)

type runOptions struct {
	executionID string
	triggerType string
}

// WithExecutionID runs under a pre-allocated execution id. When the context
// carries resume_from_step and the execution exists, the stored paused
// execution is resumed instead of creating a new one.
func WithExecutionID(id string) RunOption {
	return func(o *runOptions) {
		o.executionID = id
	}
}

// WithTriggerType overrides the trigger type recorded on a new execution.
func WithTriggerType(triggerType string) RunOption {
	return func(o *runOptions) {
		o.triggerType = triggerType
	}
}

// Run executes workflowID against execCtx, starting at execCtx's resume_from_step
// or at the first step.
//
// Step failures do not produce an error: they end the execution as failed and
// the execution is returned. Errors are returned for a missing definition
// (*DefinitionError), an execution that cannot be started or resumed, and
// failed authoritative writes (*persistence.PersistenceError).
func (c *Coordinator) Run(
	ctx context.Context,
	workflowID string,
	execCtx models.ExecutionContext,
	opts ...RunOption,
) (*models.WorkflowExecution, error) {
	var options runOptions
	for _, opt := range opts {
		opt(&options)
	}

	startIndex, resuming := execCtx.ResumeFromStep()

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.Int(otelhelper.StepIndexKey, startIndex),
		attribute.Bool(otelhelper.IsTestKey, execCtx.IsTest()),
	)
	defer span.End()

	workflow, err := c.workflows.GetByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			err = &DefinitionError{WorkflowID: workflowID, Err: err}
		} else {
			err = fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}

		otelhelper.SetError(span, err)

		return nil, err
	}

	stepCtx := execCtx.WithoutResume()
	if _, ok := stepCtx[models.ContextKeyWorkflowID]; !ok {
		stepCtx[models.ContextKeyWorkflowID] = workflow.ID
	}

	execution, err := c.prepare(ctx, workflow, stepCtx, startIndex, resuming, options)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))

	execution, err = c.execute(ctx, workflow, execution, stepCtx, startIndex)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return execution, err
}

// prepare loads the paused execution being resumed or creates a new running one.
func (c *Coordinator) prepare(
	ctx context.Context,
	workflow *models.Workflow,
	stepCtx models.ExecutionContext,
	startIndex int,
	resuming bool,
	options runOptions,
) (*models.WorkflowExecution, error) {
	if options.executionID != "" {
		existing, err := c.executions.GetExecution(ctx, options.executionID)

		switch {
		case err == nil && !resuming:
			return nil, fmt.Errorf("%w: %s", ErrExecutionExists, options.executionID)
		case err == nil:
			return c.resume(ctx, existing, startIndex)
		case !persistence.IsExecutionNotFound(err):
			return nil, fmt.Errorf("failed to load execution %s: %w", options.executionID, err)
		}
	}

	executionID := options.executionID
	if executionID == "" {
		executionID = uuid.NewString()
	}

	triggerType := options.triggerType
	if triggerType == "" {
		triggerType = workflow.TriggerType()
	}

	now := c.now().UTC()

	execution := &models.WorkflowExecution{
		ID:            executionID,
		WorkflowID:    workflow.ID,
		Status:        models.ExecutionStatusRunning,
		TriggerType:   triggerType,
		TriggerData:   stepCtx,
		StartedAt:     now,
		StepsExecuted: []models.StepResult{},
	}

	c.log.Record(ctx, execution)

	if !resuming {
		err := c.workflows.RecordExecution(ctx, workflow.ID, now)
		if err != nil {
			c.logger.WarnContext(ctx, "failed to update workflow counters", "workflow_id", workflow.ID, "error", err)
		}
	}

	c.logger.InfoContext(ctx, "execution started",
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
		"trigger_type", triggerType,
		"start_index", startIndex,
		"is_test", stepCtx.IsTest(),
	)

	c.publish(ctx, workflow.ID, events.WorkflowExecutionStarted{
		BaseEvent:   c.baseEvent(events.WorkflowExecutionStartedEvent, workflow.ID),
		ExecutionID: execution.ID,
		TriggerType: triggerType,
		IsTest:      stepCtx.IsTest(),
	})

	return execution, nil
}

func (c *Coordinator) resume(
	ctx context.Context,
	execution *models.WorkflowExecution,
	startIndex int,
) (*models.WorkflowExecution, error) {
	if execution.Status != models.ExecutionStatusPaused {
		return nil, fmt.Errorf("%w: %s is %s", ErrExecutionNotResumable, execution.ID, execution.Status)
	}

	err := execution.TransitionTo(models.ExecutionStatusRunning)
	if err != nil {
		return nil, err
	}

	execution.PausedAt = nil
	execution.ResumeAt = nil

	c.log.Record(ctx, execution)

	c.logger.InfoContext(ctx, "execution resumed",
		"workflow_id", execution.WorkflowID,
		"execution_id", execution.ID,
		"resume_from_step", startIndex,
	)

	c.publish(ctx, execution.WorkflowID, events.WorkflowExecutionResumed{
		BaseEvent:      c.baseEvent(events.WorkflowExecutionResumedEvent, execution.WorkflowID),
		ExecutionID:    execution.ID,
		ResumeFromStep: startIndex,
	})

	return execution, nil
}

func (c *Coordinator) execute(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	stepCtx models.ExecutionContext,
	startIndex int,
) (*models.WorkflowExecution, error) {
	for index := startIndex; index < len(workflow.Steps); index++ {
		step := workflow.Steps[index]
		if step == nil || step.Type == models.StepTypeTrigger {
			continue
		}

		if step.Type == models.StepTypeDelay {
			decision, err := c.delays.Handle(ctx, step, index, execution)
			if err != nil {
				if persistence.IsPersistenceError(err) {
					return execution, err
				}

				now := c.now().UTC()
				execution.AppendStep(models.StepResult{
					StepID:       step.ID,
					StepIndex:    index,
					StepType:     step.Type,
					Status:       models.StepStatusFailed,
					StartedAt:    now,
					CompletedAt:  now,
					ErrorMessage: err.Error(),
				})

				return c.fail(ctx, execution, &StepExecutionError{StepID: step.ID, StepIndex: index, Err: err})
			}

			if decision.Suspended {
				c.publish(ctx, execution.WorkflowID, events.WorkflowExecutionPaused{
					BaseEvent:      c.baseEvent(events.WorkflowExecutionPausedEvent, execution.WorkflowID),
					ExecutionID:    execution.ID,
					StepID:         step.ID,
					ResumeFromStep: decision.Resume.ResumeFromStep,
					ResumeAt:       decision.Resume.ResumeAt,
				})

				return execution, nil
			}

			c.log.Record(ctx, execution)

			continue
		}

		result := c.executeStep(ctx, step, index, stepCtx)
		execution.AppendStep(result.stepResult)

		if !result.outcome.Success {
			return c.fail(ctx, execution, &StepExecutionError{StepID: step.ID, StepIndex: index, Err: result.outcome.Err})
		}

		c.log.Record(ctx, execution)
	}

	return c.complete(ctx, execution)
}

type stepRun struct {
	outcome    steps.Outcome
	stepResult models.StepResult
}

func (c *Coordinator) executeStep(
	ctx context.Context,
	step *models.Step,
	index int,
	stepCtx models.ExecutionContext,
) stepRun {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.Int(otelhelper.StepIndexKey, index),
		attribute.String(otelhelper.StepTypeKey, string(step.Type)),
	)
	defer span.End()

	startedAt := c.now().UTC()
	outcome := c.interpreter.ExecuteStep(ctx, step, stepCtx)

	result := models.StepResult{
		StepID:      step.ID,
		StepIndex:   index,
		StepType:    step.Type,
		Status:      models.StepStatusCompleted,
		StartedAt:   startedAt,
		CompletedAt: c.now().UTC(),
		OutputData:  outcome.Result,
	}

	if !outcome.Success {
		if outcome.Err == nil {
			outcome.Err = fmt.Errorf("step %s failed", step.ID)
		}

		result.Status = models.StepStatusFailed
		result.ErrorMessage = outcome.ErrorMessage()

		otelhelper.SetError(span, outcome.Err)
	}

	return stepRun{outcome: outcome, stepResult: result}
}

func (c *Coordinator) fail(
	ctx context.Context,
	execution *models.WorkflowExecution,
	stepErr *StepExecutionError,
) (*models.WorkflowExecution, error) {
	err := execution.TransitionTo(models.ExecutionStatusFailed)
	if err != nil {
		return execution, err
	}

	completedAt := c.now().UTC()
	execution.CompletedAt = &completedAt
	execution.ErrorMessage = stepErr.Err.Error()

	err = c.log.Commit(ctx, execution)
	if err != nil {
		return execution, err
	}

	c.logger.WarnContext(ctx, "execution failed",
		"workflow_id", execution.WorkflowID,
		"execution_id", execution.ID,
		"step_id", stepErr.StepID,
		"step_index", stepErr.StepIndex,
		"error", stepErr.Err,
	)

	c.publish(ctx, execution.WorkflowID, events.WorkflowExecutionFailed{
		BaseEvent:   c.baseEvent(events.WorkflowExecutionFailedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		StepID:      stepErr.StepID,
		StepIndex:   stepErr.StepIndex,
		Error:       stepErr.Error(),
	})

	return execution, nil
}

func (c *Coordinator) complete(ctx context.Context, execution *models.WorkflowExecution) (*models.WorkflowExecution, error) {
	err := execution.TransitionTo(models.ExecutionStatusCompleted)
	if err != nil {
		return execution, err
	}

	completedAt := c.now().UTC()
	execution.CompletedAt = &completedAt

	err = c.log.Commit(ctx, execution)
	if err != nil {
		return execution, err
	}

	c.logger.InfoContext(ctx, "execution completed",
		"workflow_id", execution.WorkflowID,
		"execution_id", execution.ID,
		"steps_executed", len(execution.StepsExecuted),
	)

	c.publish(ctx, execution.WorkflowID, events.WorkflowExecutionCompleted{
		BaseEvent:     c.baseEvent(events.WorkflowExecutionCompletedEvent, execution.WorkflowID),
		ExecutionID:   execution.ID,
		StepsExecuted: len(execution.StepsExecuted),
		Duration:      completedAt.Sub(execution.StartedAt),
	})

	return execution, nil
}

func (c *Coordinator) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID)
	base.WorkerID = c.workerID

	return base
}

// publish sends a lifecycle event. Delivery problems never affect the run.
func (c *Coordinator) publish(ctx context.Context, key string, event eventbus.Event) {
	err := c.publisher.Publish(ctx, key, event)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to publish lifecycle event", "event_type", event.GetType(), "error", err)
	}
}
