package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

// ExecutionRepository handles execution log file operations.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates a new execution log repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "execution_logs")
}

// SaveExecution writes the execution log, replacing any previous version.
func (er *ExecutionRepository) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	if execution == nil {
		return errors.New("execution cannot be nil")
	}

	if err := validateID(execution.ID); err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	return writeJSON(filepath.Join(er.dir(), execution.ID+".json"), execution)
}

// GetExecution retrieves an execution log by its ID.
func (er *ExecutionRepository) GetExecution(_ context.Context, id string) (*models.WorkflowExecution, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("execution %q: %w", id, persistence.ErrExecutionNotFound)
	}

	var execution models.WorkflowExecution

	err := readJSON(filepath.Join(er.dir(), id+".json"), &execution)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch execution %s: %w", id, err)
	}

	return &execution, nil
}

// GetExecutionsByWorkflow returns the executions of a workflow, newest first.
func (er *ExecutionRepository) GetExecutionsByWorkflow(
	ctx context.Context,
	workflowID string,
) ([]*models.WorkflowExecution, error) {
	return er.filter(ctx, func(e *models.WorkflowExecution) bool {
		return e.WorkflowID == workflowID
	})
}

// GetExecutionsByStatus returns the executions in the given status, newest first.
func (er *ExecutionRepository) GetExecutionsByStatus(
	ctx context.Context,
	status models.ExecutionStatus,
) ([]*models.WorkflowExecution, error) {
	return er.filter(ctx, func(e *models.WorkflowExecution) bool {
		return e.Status == status
	})
}

func (er *ExecutionRepository) filter(
	ctx context.Context,
	keep func(*models.WorkflowExecution) bool,
) ([]*models.WorkflowExecution, error) {
	ids, err := listJSON(er.dir())
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, id := range ids {
		execution, err := er.GetExecution(ctx, id)
		if err != nil {
			return nil, err
		}

		if keep(execution) {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}
