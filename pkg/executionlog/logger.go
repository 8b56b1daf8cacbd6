// Package executionlog persists workflow executions and their step history.
package executionlog

import (
	"context"
	"log/slog"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

// Logger writes executions to the execution repository.
//
// Record is for progress writes: a failure is logged and dropped so it never
// changes the outcome of the run being recorded. Commit is for state
// transitions the engine depends on and reports failures to the caller.
type Logger struct {
	repository persistence.ExecutionRepository
	logger     *slog.Logger
}

// NewLogger creates a Logger writing executions to repository.
func NewLogger(repository persistence.ExecutionRepository, logger *slog.Logger) *Logger {
	return &Logger{
		repository: repository,
		logger:     logger.With("module", "execution_log"),
	}
}

// Record upserts the execution, swallowing errors.
func (l *Logger) Record(ctx context.Context, execution *models.WorkflowExecution) {
	err := l.repository.SaveExecution(ctx, execution)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to record execution",
			"execution_id", execution.ID,
			"workflow_id", execution.WorkflowID,
			"status", execution.Status,
			"steps_executed", len(execution.StepsExecuted),
			"error", err,
		)
	}
}

// Commit upserts the execution and returns a *persistence.PersistenceError on failure.
func (l *Logger) Commit(ctx context.Context, execution *models.WorkflowExecution) error {
	err := l.repository.SaveExecution(ctx, execution)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to commit execution state",
			"execution_id", execution.ID,
			"workflow_id", execution.WorkflowID,
			"status", execution.Status,
			"error", err,
		)

		return persistence.NewPersistenceError("commit "+string(execution.Status), execution.ID, err)
	}

	return nil
}
