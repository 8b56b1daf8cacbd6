package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/google/uuid"
)

// ErrWorkflowNil is returned when a nil workflow is handed to the repository.
var ErrWorkflowNil = errors.New("workflow cannot be nil")

// Repository applies defaults and lookups on top of the workflow store.
type Repository struct {
	persistence persistence.Persistence
}

// NewRepository creates a Repository over persistence.
func NewRepository(persistence persistence.Persistence) *Repository {
	return &Repository{
		persistence: persistence,
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create stores a new workflow. New workflows are inactive unless a status is given.
func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusInactive
	}

	if workflow.Steps == nil {
		workflow.Steps = []*models.Step{}
	}

	workflow.ExecutionCount = 0
	workflow.LastExecutedAt = nil

	err := r.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update replaces the definition of an existing workflow, keeping its identity and counters.
func (r *Repository) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := r.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = id
	workflow.CreatedAt = existing.CreatedAt
	workflow.ExecutionCount = existing.ExecutionCount
	workflow.LastExecutedAt = existing.LastExecutedAt

	if workflow.Status == "" {
		workflow.Status = existing.Status
	}

	err = r.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.FetchByID(ctx, id)
	if err != nil {
		return err
	}

	return r.persistence.WorkflowRepository().Delete(ctx, id)
}

// FetchActiveByTriggerType returns the active workflows started by the given trigger type.
func (r *Repository) FetchActiveByTriggerType(ctx context.Context, triggerType string) ([]*models.Workflow, error) {
	workflows, err := r.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflows: %w", err)
	}

	active := make([]*models.Workflow, 0)

	for _, workflow := range workflows {
		if workflow.IsActive() && workflow.TriggerType() == triggerType {
			active = append(active, workflow)
		}
	}

	return active, nil
}

// Executions returns the executions of an existing workflow, newest first.
func (r *Repository) Executions(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	_, err := r.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return r.persistence.ExecutionRepository().GetExecutionsByWorkflow(ctx, workflowID)
}

// Execution returns a stored execution by id.
func (r *Repository) Execution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return r.persistence.ExecutionRepository().GetExecution(ctx, id)
}
