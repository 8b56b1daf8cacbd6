// Package persistence provides the storage abstraction for workflow definitions,
// execution logs and scheduled resumes.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/autoflow/pkg/models"
)

// Persistence groups the repositories backing the engine.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	ResumeRepository() ResumeRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions and their run counters.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	// GetByID returns ErrWorkflowNotFound when the workflow does not exist.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	// RecordExecution increments the execution counter and sets the last execution time.
	RecordExecution(ctx context.Context, id string, at time.Time) error
}

// ExecutionRepository stores execution logs: the run record and its step history.
type ExecutionRepository interface {
	// SaveExecution inserts or replaces the execution keyed by its ID.
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	// GetExecution returns ErrExecutionNotFound when the execution does not exist.
	GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error)
	GetExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
	GetExecutionsByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error)
}

// ResumeRepository stores scheduled resumes of paused executions.
type ResumeRepository interface {
	// ScheduleResume stores a new pending resume. It returns ErrResumeAlreadyScheduled
	// when the execution already has a pending resume.
	ScheduleResume(ctx context.Context, resume *models.ScheduledResume) error
	// DueResumes returns at most limit pending resumes with ResumeAt <= now, oldest first.
	DueResumes(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledResume, error)
	// ClaimResume atomically moves a resume from pending to processing.
	// It returns ErrClaimConflict when the resume is no longer pending.
	ClaimResume(ctx context.Context, id string) error
	CompleteResume(ctx context.Context, id string) error
	FailResume(ctx context.Context, id string, message string) error
	GetResume(ctx context.Context, id string) (*models.ScheduledResume, error)
	GetResumesByExecution(ctx context.Context, executionID string) ([]*models.ScheduledResume, error)
}

// WithResumeRepository returns a Persistence that serves scheduled resumes from
// resumes and everything else from base.
func WithResumeRepository(base Persistence, resumes ResumeRepository, closer func(ctx context.Context) error) Persistence {
	return &composite{Persistence: base, resumes: resumes, closer: closer}
}

type composite struct {
	Persistence
	resumes ResumeRepository
	closer  func(ctx context.Context) error
}

func (c *composite) ResumeRepository() ResumeRepository {
	return c.resumes
}

func (c *composite) Close(ctx context.Context) error {
	err := c.Persistence.Close(ctx)

	if c.closer != nil {
		closeErr := c.closer(ctx)
		if err == nil {
			err = closeErr
		}
	}

	return err
}
