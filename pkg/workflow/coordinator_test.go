package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/mocks"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/persistence/file"
	"github.com/dukex/autoflow/pkg/testutil"
	"github.com/dukex/autoflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.EventType
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event.GetType())

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]events.EventType(nil), p.events...)
}

type fixture struct {
	store       persistence.Persistence
	dispatcher  *mocks.MockDispatcher
	publisher   *recordingPublisher
	coordinator *workflow.Coordinator
	waits       []time.Duration
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:      file.NewPersistence(t.TempDir()),
		dispatcher: &mocks.MockDispatcher{},
		publisher:  &recordingPublisher{},
		now:        time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}

	f.coordinator = workflow.NewCoordinator(f.store, f.dispatcher, slog.Default(),
		workflow.WithPublisher(f.publisher),
		workflow.WithClock(func() time.Time { return f.now }),
		workflow.WithSleeper(func(_ context.Context, d time.Duration) error {
			f.waits = append(f.waits, d)

			return nil
		}),
		workflow.WithWorkerID("worker-test"),
	)

	return f
}

func (f *fixture) saveWorkflow(t *testing.T, steps ...*models.Step) *models.Workflow {
	t.Helper()

	wf := testutil.CreateTestWorkflow(steps)
	require.NoError(t, f.store.WorkflowRepository().Save(context.Background(), wf))

	return wf
}

func reminderSteps() []*models.Step {
	return []*models.Step{
		testutil.TriggerStep("trigger", models.TriggerTypeJobStatusChanged),
		testutil.EmailStep("email", "Hi {{client.name}}", "Job {{job.id}} is done"),
		testutil.DelayStep("wait", models.DelayTypeHours, 2),
		testutil.SMSStep("sms", "Reminder for {{client.name}}"),
	}
}

func TestRun_PausesOnLongDelayAndResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.saveWorkflow(t, reminderSteps()...)

	f.dispatcher.On("SendEmail", mock.Anything, "jane@example.com", "Hi Jane Doe", "Job job-1 is done").
		Return(&dispatch.Result{ID: "email-1"}, nil).Once()
	f.dispatcher.On("SendSMS", mock.Anything, "+15550100", "Reminder for Jane Doe").
		Return(&dispatch.Result{ID: "sms-1"}, nil).Once()

	execution, err := f.coordinator.Run(ctx, wf.ID, testutil.ClientContext())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
	require.NotNil(t, execution.ResumeAt)
	assert.Equal(t, f.now.Add(2*time.Hour), *execution.ResumeAt)
	assert.Len(t, execution.StepsExecuted, 2)
	assert.Empty(t, f.waits)
	f.dispatcher.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)

	resumes, err := f.store.ResumeRepository().GetResumesByExecution(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, resumes, 1)

	resume := resumes[0]
	assert.Equal(t, 3, resume.ResumeFromStep)
	assert.Equal(t, models.ResumeStatusPending, resume.Status)

	from, ok := resume.Context.ResumeFromStep()
	require.True(t, ok)
	assert.Equal(t, 3, from)

	stored, err := f.store.ExecutionRepository().GetExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, stored.Status)

	f.now = f.now.Add(2*time.Hour + time.Second)

	resumed, err := f.coordinator.Run(ctx, wf.ID, resume.Context, workflow.WithExecutionID(execution.ID))
	require.NoError(t, err)

	assert.Equal(t, execution.ID, resumed.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	assert.Nil(t, resumed.ResumeAt)
	require.NotNil(t, resumed.CompletedAt)
	require.Len(t, resumed.StepsExecuted, 3)
	assert.Equal(t, "sms", resumed.StepsExecuted[2].StepID)
	assert.Equal(t, 3, resumed.StepsExecuted[2].StepIndex)
	assert.NotContains(t, resumed.TriggerData, models.ContextKeyResumeFromStep)

	f.dispatcher.AssertExpectations(t)
	f.dispatcher.AssertNumberOfCalls(t, "SendEmail", 1)

	stored, err = f.store.ExecutionRepository().GetExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)

	// Resumed runs do not count as new executions.
	reloaded, err := f.store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.ExecutionCount)

	assert.Equal(t, []events.EventType{
		events.WorkflowExecutionStartedEvent,
		events.WorkflowExecutionPausedEvent,
		events.WorkflowExecutionResumedEvent,
		events.WorkflowExecutionCompletedEvent,
	}, f.publisher.types())
}

func TestRun_TestModeResolvesDelaysInline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.saveWorkflow(t, reminderSteps()...)

	f.dispatcher.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&dispatch.Result{ID: "email-1"}, nil)
	f.dispatcher.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).
		Return(&dispatch.Result{ID: "sms-1"}, nil)

	execCtx := testutil.ClientContext().Merge(map[string]any{models.ContextKeyIsTest: true})

	execution, err := f.coordinator.Run(ctx, wf.ID, execCtx)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.Len(t, execution.StepsExecuted, 3)
	assert.Equal(t, true, execution.StepsExecuted[1].OutputData["inline"])
	assert.Equal(t, []time.Duration{5 * time.Second}, f.waits)

	resumes, err := f.store.ResumeRepository().GetResumesByExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Empty(t, resumes)
}

func TestRun_ShortDelayWaitsInline(t *testing.T) {
	f := newFixture(t)
	wf := f.saveWorkflow(t,
		testutil.DelayStep("wait", models.DelayTypeMinutes, 0.5),
		testutil.TaskStep("task", "Call {{client.name}}"),
	)

	f.dispatcher.On("CreateTask", mock.Anything, mock.Anything).Return(&dispatch.Result{ID: "task-1"}, nil)

	execution, err := f.coordinator.Run(context.Background(), wf.ID, testutil.ClientContext())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []time.Duration{5 * time.Second}, f.waits)
}

func TestRun_FailureHaltsExecution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.saveWorkflow(t, reminderSteps()...)

	f.dispatcher.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("smtp unavailable"))

	execution, err := f.coordinator.Run(ctx, wf.ID, testutil.ClientContext())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "smtp unavailable")
	require.NotNil(t, execution.CompletedAt)
	require.Len(t, execution.StepsExecuted, 1)
	assert.Equal(t, models.StepStatusFailed, execution.StepsExecuted[0].Status)
	f.dispatcher.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)

	resumes, err := f.store.ResumeRepository().GetResumesByExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Empty(t, resumes)

	stored, err := f.store.ExecutionRepository().GetExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)

	assert.Contains(t, f.publisher.types(), events.WorkflowExecutionFailedEvent)
}

func TestRun_MissingRecipientFailsStep(t *testing.T) {
	f := newFixture(t)
	wf := f.saveWorkflow(t, testutil.SMSStep("sms", "hello"))

	execution, err := f.coordinator.Run(context.Background(), wf.ID, models.ExecutionContext{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "no recipient phone found")
}

func TestRun_UnknownWorkflow(t *testing.T) {
	f := newFixture(t)

	execution, err := f.coordinator.Run(context.Background(), "missing", models.ExecutionContext{})
	require.Error(t, err)

	assert.Nil(t, execution)
	assert.True(t, workflow.IsDefinitionError(err))
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRun_ResumeRequiresPausedExecution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.saveWorkflow(t, testutil.ConditionStep("check", "job.status", "equals", "completed"))

	execution, err := f.coordinator.Run(ctx, wf.ID, testutil.ClientContext())
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	resumeCtx := models.ExecutionContext{models.ContextKeyResumeFromStep: 1}

	_, err = f.coordinator.Run(ctx, wf.ID, resumeCtx, workflow.WithExecutionID(execution.ID))
	require.ErrorIs(t, err, workflow.ErrExecutionNotResumable)

	_, err = f.coordinator.Run(ctx, wf.ID, testutil.ClientContext(), workflow.WithExecutionID(execution.ID))
	require.ErrorIs(t, err, workflow.ErrExecutionExists)
}

func TestRun_UsesRequestedExecutionID(t *testing.T) {
	f := newFixture(t)
	wf := f.saveWorkflow(t, testutil.ConditionStep("check", "job.status", "equals", "completed"))

	execution, err := f.coordinator.Run(context.Background(), wf.ID, testutil.ClientContext(),
		workflow.WithExecutionID("exec-42"),
		workflow.WithTriggerType(models.TriggerTypeManual),
	)
	require.NoError(t, err)

	assert.Equal(t, "exec-42", execution.ID)
	assert.Equal(t, models.TriggerTypeManual, execution.TriggerType)
	assert.Equal(t, wf.ID, execution.TriggerData[models.ContextKeyWorkflowID])
	assert.Equal(t, true, execution.StepsExecuted[0].OutputData["condition_met"])
}

func TestRun_StartsFromResumeIndexForNewExecution(t *testing.T) {
	f := newFixture(t)
	wf := f.saveWorkflow(t, reminderSteps()...)

	f.dispatcher.On("SendSMS", mock.Anything, "+15550100", "Reminder for Jane Doe").
		Return(&dispatch.Result{ID: "sms-1"}, nil).Once()

	execCtx := testutil.ClientContext().Merge(map[string]any{models.ContextKeyResumeFromStep: 3})

	execution, err := f.coordinator.Run(context.Background(), wf.ID, execCtx)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.Len(t, execution.StepsExecuted, 1)
	f.dispatcher.AssertExpectations(t)
}

func TestTest_ReportsActions(t *testing.T) {
	f := newFixture(t)
	wf := f.saveWorkflow(t, reminderSteps()...)

	f.dispatcher.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&dispatch.Result{ID: "email-1"}, nil)
	f.dispatcher.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).
		Return(&dispatch.Result{ID: "sms-1"}, nil)

	report, err := f.coordinator.Test(context.Background(), wf.ID, testutil.ClientContext())
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 2, report.ActionsExecuted)
	assert.Equal(t, models.TriggerTypeManual, report.Execution.TriggerType)
	assert.True(t, report.Execution.TriggerData.IsTest())
}

func TestHandleExecutionRequested(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wf := f.saveWorkflow(t, testutil.ConditionStep("check", "job.status", "equals", "completed"))

	request := &events.ExecutionRequested{
		BaseEvent:   events.NewBaseEvent(events.ExecutionRequestedEvent, wf.ID),
		ExecutionID: "exec-requested",
		TriggerType: models.TriggerTypeJobStatusChanged,
		Context:     testutil.ClientContext(),
	}

	require.NoError(t, f.coordinator.HandleExecutionRequested(ctx, request))

	stored, err := f.store.ExecutionRepository().GetExecution(ctx, "exec-requested")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.Equal(t, models.TriggerTypeJobStatusChanged, stored.TriggerType)

	// Redelivery of a handled request and requests for deleted workflows are dropped.
	require.NoError(t, f.coordinator.HandleExecutionRequested(ctx, request))

	request.WorkflowID = "deleted"
	request.ExecutionID = "exec-other"
	require.NoError(t, f.coordinator.HandleExecutionRequested(ctx, request))

	require.NoError(t, f.coordinator.HandleExecutionRequested(ctx, "not an event"))
}
