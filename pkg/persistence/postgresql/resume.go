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
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const resumeColumns = `
	id
  , workflow_id
  , execution_id
  , resume_at
  , resume_from_step
  , context
  , status
  , error_message
  , created_at
  , updated_at
`

// uniqueViolation is the PostgreSQL error code raised by the one-pending-resume index.
const uniqueViolation = "23505"

// ResumeRepository handles scheduled resume database operations.
type ResumeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewResumeRepository creates a new scheduled resume repository.
func NewResumeRepository(db *sql.DB, logger *slog.Logger) *ResumeRepository {
	return &ResumeRepository{db: db, logger: logger}
}

// ScheduleResume stores a new pending resume.
func (rr *ResumeRepository) ScheduleResume(ctx context.Context, resume *models.ScheduledResume) error {
	if resume == nil {
		return errors.New("scheduled resume cannot be nil")
	}

	if resume.ID == "" {
		resume.ID = uuid.NewString()
	}

	resumeContext := resume.Context
	if resumeContext == nil {
		resumeContext = models.ExecutionContext{}
	}

	contextJSON, err := json.Marshal(resumeContext)
	if err != nil {
		return fmt.Errorf("failed to marshal resume context: %w", err)
	}

	now := time.Now().UTC()
	resume.Status = models.ResumeStatusPending
	resume.CreatedAt = now
	resume.UpdatedAt = now

	_, err = rr.db.ExecContext(ctx, `
		INSERT INTO scheduled_resumes (
			id, workflow_id, execution_id, resume_at, resume_from_step,
			context, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		resume.ID,
		resume.WorkflowID,
		resume.ExecutionID,
		resume.ResumeAt.UTC(),
		resume.ResumeFromStep,
		contextJSON,
		resume.Status,
		resume.CreatedAt,
		resume.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewResumeError("ScheduleResume", resume.ID, persistence.ErrResumeAlreadyScheduled)
		}

		return persistence.NewResumeError("ScheduleResume", resume.ID, err)
	}

	return nil
}

// DueResumes returns pending resumes whose time has come, oldest first.
func (rr *ResumeRepository) DueResumes(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledResume, error) {
	query := `SELECT ` + resumeColumns + `
		FROM scheduled_resumes
		WHERE status = 'pending' AND resume_at <= $1
		ORDER BY resume_at ASC, created_at ASC
		LIMIT $2
	`

	if limit <= 0 {
		limit = 10
	}

	return rr.query(ctx, query, now.UTC(), limit)
}

// ClaimResume moves a resume from pending to processing in a single conditional update.
func (rr *ResumeRepository) ClaimResume(ctx context.Context, id string) error {
	result, err := rr.db.ExecContext(ctx, `
		UPDATE scheduled_resumes
		SET status = 'processing', updated_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, time.Now().UTC())
	if err != nil {
		return persistence.NewResumeError("ClaimResume", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewResumeError("ClaimResume", id, err)
	}

	if affected == 1 {
		return nil
	}

	_, err = rr.GetResume(ctx, id)
	if err != nil {
		return err
	}

	return persistence.NewResumeError("ClaimResume", id, persistence.ErrClaimConflict)
}

// CompleteResume marks a claimed resume as completed.
func (rr *ResumeRepository) CompleteResume(ctx context.Context, id string) error {
	return rr.finish(ctx, "CompleteResume", id, models.ResumeStatusCompleted, "")
}

// FailResume marks a resume as failed with the given message.
func (rr *ResumeRepository) FailResume(ctx context.Context, id string, message string) error {
	return rr.finish(ctx, "FailResume", id, models.ResumeStatusFailed, message)
}

func (rr *ResumeRepository) finish(
	ctx context.Context,
	op, id string,
	status models.ResumeStatus,
	message string,
) error {
	result, err := rr.db.ExecContext(ctx, `
		UPDATE scheduled_resumes
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1
	`, id, status, sql.NullString{String: message, Valid: message != ""}, time.Now().UTC())
	if err != nil {
		return persistence.NewResumeError(op, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewResumeError(op, id, err)
	}

	if affected == 0 {
		return persistence.NewResumeError(op, id, persistence.ErrResumeNotFound)
	}

	return nil
}

// GetResume retrieves a scheduled resume by its ID.
func (rr *ResumeRepository) GetResume(ctx context.Context, id string) (*models.ScheduledResume, error) {
	query := `SELECT ` + resumeColumns + ` FROM scheduled_resumes WHERE id = $1`

	resume, err := rr.scanResume(rr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewResumeError("GetResume", id, persistence.ErrResumeNotFound)
		}

		return nil, persistence.NewResumeError("GetResume", id, err)
	}

	return resume, nil
}

// GetResumesByExecution returns every resume scheduled for an execution, oldest first.
func (rr *ResumeRepository) GetResumesByExecution(
	ctx context.Context,
	executionID string,
) ([]*models.ScheduledResume, error) {
	query := `SELECT ` + resumeColumns + `
		FROM scheduled_resumes
		WHERE execution_id = $1
		ORDER BY resume_at ASC, created_at ASC
	`

	return rr.query(ctx, query, executionID)
}

func (rr *ResumeRepository) query(ctx context.Context, query string, args ...any) ([]*models.ScheduledResume, error) {
	rows, err := rr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled resumes: %w", err)
	}
	defer closeRows(ctx, rr.logger, rows)

	resumes := make([]*models.ScheduledResume, 0)

	for rows.Next() {
		resume, err := rr.scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled resume: %w", err)
		}

		resumes = append(resumes, resume)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating scheduled resumes: %w", err)
	}

	return resumes, nil
}

func (rr *ResumeRepository) scanResume(row scanner) (*models.ScheduledResume, error) {
	var (
		resume       models.ScheduledResume
		contextJSON  []byte
		errorMessage sql.NullString
	)

	err := row.Scan(
		&resume.ID,
		&resume.WorkflowID,
		&resume.ExecutionID,
		&resume.ResumeAt,
		&resume.ResumeFromStep,
		&contextJSON,
		&resume.Status,
		&errorMessage,
		&resume.CreatedAt,
		&resume.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(contextJSON, &resume.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal resume context: %w", err)
	}

	resume.ErrorMessage = errorMessage.String
	resume.ResumeAt = resume.ResumeAt.UTC()

	return &resume, nil
}
