package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

const executionColumns = `
	id
  , workflow_id
  , status
  , trigger_type
  , trigger_data
  , steps_executed
  , error_message
  , started_at
  , paused_at
  , resume_at
  , completed_at
`

// ExecutionRepository handles execution log database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution log repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// SaveExecution inserts the execution log or replaces the stored version.
func (er *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	if execution == nil {
		return errors.New("execution cannot be nil")
	}

	triggerData := execution.TriggerData
	if triggerData == nil {
		triggerData = models.ExecutionContext{}
	}

	triggerDataJSON, err := json.Marshal(triggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	steps := execution.StepsExecuted
	if steps == nil {
		steps = []models.StepResult{}
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps executed: %w", err)
	}

	query := `
		INSERT INTO execution_logs (
			id, workflow_id, status, trigger_type, trigger_data, steps_executed,
			error_message, started_at, paused_at, resume_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			trigger_type = EXCLUDED.trigger_type,
			trigger_data = EXCLUDED.trigger_data,
			steps_executed = EXCLUDED.steps_executed,
			error_message = EXCLUDED.error_message,
			paused_at = EXCLUDED.paused_at,
			resume_at = EXCLUDED.resume_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err = er.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.TriggerType,
		triggerDataJSON,
		stepsJSON,
		sql.NullString{String: execution.ErrorMessage, Valid: execution.ErrorMessage != ""},
		execution.StartedAt,
		execution.PausedAt,
		execution.ResumeAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution log: %w", err)
	}

	return nil
}

// GetExecution retrieves an execution log by its ID.
func (er *ExecutionRepository) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM execution_logs WHERE id = $1`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to get execution log: %w", err)
	}

	return execution, nil
}

// GetExecutionsByWorkflow returns the executions of a workflow, newest first.
func (er *ExecutionRepository) GetExecutionsByWorkflow(
	ctx context.Context,
	workflowID string,
) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM execution_logs
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	return er.query(ctx, query, workflowID)
}

// GetExecutionsByStatus returns the executions in the given status, newest first.
func (er *ExecutionRepository) GetExecutionsByStatus(
	ctx context.Context,
	status models.ExecutionStatus,
) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM execution_logs
		WHERE status = $1
		ORDER BY started_at DESC
	`

	return er.query(ctx, query, status)
}

func (er *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := er.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}
	defer closeRows(ctx, er.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return executions, nil
}

func (er *ExecutionRepository) scanExecution(row scanner) (*models.WorkflowExecution, error) {
	var (
		execution       models.WorkflowExecution
		triggerDataJSON []byte
		stepsJSON       []byte
		errorMessage    sql.NullString
		pausedAt        sql.NullTime
		resumeAt        sql.NullTime
		completedAt     sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.TriggerType,
		&triggerDataJSON,
		&stepsJSON,
		&errorMessage,
		&execution.StartedAt,
		&pausedAt,
		&resumeAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(triggerDataJSON, &execution.TriggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
	}

	err = json.Unmarshal(stepsJSON, &execution.StepsExecuted)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps executed: %w", err)
	}

	execution.ErrorMessage = errorMessage.String
	execution.PausedAt = nullTime(pausedAt)
	execution.ResumeAt = nullTime(resumeAt)
	execution.CompletedAt = nullTime(completedAt)

	return &execution, nil
}

func nullTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}

	t := value.Time.UTC()

	return &t
}
