package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/autoflow/pkg/mocks"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/persistence/file"
	"github.com/dukex/autoflow/pkg/testutil"
	"github.com/dukex/autoflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_HealthCheck(t *testing.T) {
	store := &mocks.MockPersistence{}
	store.On("HealthCheck", context.Background()).Return(errors.New("disk gone")).Once()
	store.On("HealthCheck", context.Background()).Return(nil).Once()

	repo := workflow.NewRepository(store)

	message, ok := repo.HealthCheck(context.Background())
	assert.False(t, ok)
	assert.Contains(t, message, "disk gone")

	message, ok = repo.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	store.AssertExpectations(t)
}

func TestRepository_CreateDefaults(t *testing.T) {
	ctx := context.Background()
	repo := workflow.NewRepository(file.NewPersistence(t.TempDir()))

	lastRun := time.Now()
	created, err := repo.Create(ctx, &models.Workflow{
		Name:           "Follow up",
		ExecutionCount: 7,
		LastExecutedAt: &lastRun,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusInactive, created.Status)
	assert.Equal(t, 0, created.ExecutionCount)
	assert.Nil(t, created.LastExecutedAt)
	assert.NotNil(t, created.Steps)

	_, err = repo.Create(ctx, nil)
	require.ErrorIs(t, err, workflow.ErrWorkflowNil)
}

func TestRepository_UpdateKeepsCounters(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	repo := workflow.NewRepository(store)

	created, err := repo.Create(ctx, &models.Workflow{Name: "Follow up", Status: models.WorkflowStatusActive})
	require.NoError(t, err)
	require.NoError(t, store.WorkflowRepository().RecordExecution(ctx, created.ID, time.Now().UTC()))

	updated, err := repo.Update(ctx, created.ID, &models.Workflow{
		Name:  "Follow up v2",
		Steps: []*models.Step{testutil.SMSStep("sms", "hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, models.WorkflowStatusActive, updated.Status)
	assert.Equal(t, 1, updated.ExecutionCount)
	assert.NotNil(t, updated.LastExecutedAt)

	_, err = repo.Update(ctx, "missing", &models.Workflow{Name: "x"})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := workflow.NewRepository(file.NewPersistence(t.TempDir()))

	created, err := repo.Create(ctx, &models.Workflow{Name: "Follow up"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.FetchByID(ctx, created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = repo.Delete(ctx, created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_FetchActiveByTriggerType(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	repo := workflow.NewRepository(store)

	jobs := testutil.CreateTestWorkflow([]*models.Step{
		testutil.TriggerStep("t", models.TriggerTypeJobStatusChanged),
	})
	inactive := testutil.CreateTestWorkflow([]*models.Step{
		testutil.TriggerStep("t", models.TriggerTypeJobStatusChanged),
	}, func(w *models.Workflow) { w.Status = models.WorkflowStatusInactive })
	clients := testutil.CreateTestWorkflow([]*models.Step{
		testutil.TriggerStep("t", models.TriggerTypeClientCreated),
	})

	for _, wf := range []*models.Workflow{jobs, inactive, clients} {
		require.NoError(t, store.WorkflowRepository().Save(ctx, wf))
	}

	active, err := repo.FetchActiveByTriggerType(ctx, models.TriggerTypeJobStatusChanged)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, jobs.ID, active[0].ID)
}

func TestRepository_Executions(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	repo := workflow.NewRepository(store)

	wf := testutil.CreateTestWorkflow(nil)
	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	execution := &models.WorkflowExecution{
		ID:          "exec-1",
		WorkflowID:  wf.ID,
		Status:      models.ExecutionStatusCompleted,
		TriggerData: models.ExecutionContext{},
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.ExecutionRepository().SaveExecution(ctx, execution))

	executions, err := repo.Executions(ctx, wf.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	found, err := repo.Execution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, wf.ID, found.WorkflowID)

	_, err = repo.Executions(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
