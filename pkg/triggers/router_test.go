package triggers_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/mocks"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence/file"
	"github.com/dukex/autoflow/pkg/testutil"
	"github.com/dukex/autoflow/pkg/triggers"
	"github.com/dukex/autoflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jobTrigger(from, to string) *models.Step {
	step := testutil.TriggerStep("trigger", models.TriggerTypeJobStatusChanged)
	cfg := step.Config.(*models.TriggerConfig)
	cfg.FromStatus = from
	cfg.ToStatus = to

	return step
}

func newRouter(t *testing.T, bus *mocks.MockEventBus, workflows ...*models.Workflow) *triggers.Router {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	for _, wf := range workflows {
		require.NoError(t, store.WorkflowRepository().Save(context.Background(), wf))
	}

	router, err := triggers.NewRouter(workflow.NewRepository(store), bus, slog.Default())
	require.NoError(t, err)

	return router
}

func TestOnJobStatusChanged_MatchesStatusFilters(t *testing.T) {
	completed := testutil.CreateTestWorkflow([]*models.Step{jobTrigger("", "completed")})
	fromScheduled := testutil.CreateTestWorkflow([]*models.Step{jobTrigger("scheduled", "completed")})
	cancelled := testutil.CreateTestWorkflow([]*models.Step{jobTrigger("", "cancelled")})
	inactive := testutil.CreateTestWorkflow([]*models.Step{jobTrigger("", "")}, func(w *models.Workflow) {
		w.Status = models.WorkflowStatusInactive
	})

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, completed.ID, mock.MatchedBy(func(event events.ExecutionRequested) bool {
		return event.ExecutionID != "" &&
			event.TriggerType == models.TriggerTypeJobStatusChanged &&
			event.Context[models.ContextKeyWorkflowID] == completed.ID &&
			event.Context["user_id"] == "user-1"
	})).Return(nil).Once()

	router := newRouter(t, bus, completed, fromScheduled, cancelled, inactive)

	requests, err := router.OnJobStatusChanged(context.Background(), triggers.JobStatusChange{
		Job:        map[string]any{"id": "job-1"},
		FromStatus: "in_progress",
		ToStatus:   "completed",
		Client:     map[string]any{"email": "jane@example.com"},
		UserID:     "user-1",
	})
	require.NoError(t, err)

	require.Len(t, requests, 1)
	assert.Equal(t, completed.ID, requests[0].WorkflowID)
	assert.NotEmpty(t, requests[0].ExecutionID)
	bus.AssertExpectations(t)
}

func TestOnJobStatusChanged_SetsJobStatus(t *testing.T) {
	wf := testutil.CreateTestWorkflow([]*models.Step{jobTrigger("", "")})

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, wf.ID, mock.MatchedBy(func(event events.ExecutionRequested) bool {
		job, ok := event.Context["job"].(map[string]any)

		return ok && job["status"] == "completed" && job["id"] == "job-9"
	})).Return(nil).Once()

	router := newRouter(t, bus, wf)

	_, err := router.OnJobStatusChanged(context.Background(), triggers.JobStatusChange{
		Job:      map[string]any{"id": "job-9"},
		ToStatus: "completed",
	})
	require.NoError(t, err)
	bus.AssertExpectations(t)
}

func TestOnEvent_RejectsInvalidPayload(t *testing.T) {
	bus := &mocks.MockEventBus{}
	router := newRouter(t, bus)

	_, err := router.OnEvent(context.Background(), models.TriggerTypeJobStatusChanged, map[string]any{
		"job": map[string]any{"status": "completed"},
	})
	require.Error(t, err)
	assert.True(t, triggers.IsValidationError(err))

	var validationErr *triggers.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Problems)

	_, err = router.OnEvent(context.Background(), "payment_received", map[string]any{})
	require.ErrorIs(t, err, triggers.ErrUnknownTriggerType)

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnEvent_InvoiceOverdue(t *testing.T) {
	wf := testutil.CreateTestWorkflow([]*models.Step{
		testutil.TriggerStep("trigger", models.TriggerTypeInvoiceOverdue),
		testutil.EmailStep("email", "Invoice {{invoice.id}}", "Please pay"),
	})

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, wf.ID, mock.Anything).Return(nil).Once()

	router := newRouter(t, bus, wf)

	requests, err := router.OnEvent(context.Background(), models.TriggerTypeInvoiceOverdue, map[string]any{
		"invoice": map[string]any{"id": "inv-1", "total": 120.5},
		"client":  map[string]any{"email": "jane@example.com"},
	})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
	bus.AssertExpectations(t)
}

func TestOnEvent_PublishFailureIsReported(t *testing.T) {
	first := testutil.CreateTestWorkflow([]*models.Step{testutil.TriggerStep("t", models.TriggerTypeClientCreated)})
	second := testutil.CreateTestWorkflow([]*models.Step{testutil.TriggerStep("t", models.TriggerTypeClientCreated)})

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, first.ID, mock.Anything).Return(errors.New("broker down"))
	bus.On("Publish", mock.Anything, second.ID, mock.Anything).Return(nil)

	router := newRouter(t, bus, first, second)

	requests, err := router.OnEvent(context.Background(), models.TriggerTypeClientCreated, map[string]any{
		"client": map[string]any{"id": "c-1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	require.Len(t, requests, 1)
	assert.Equal(t, second.ID, requests[0].WorkflowID)
}
