package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/google/uuid"
)

// ResumeRepository stores scheduled resumes as JSON files. Claims and the
// one-pending-resume-per-execution rule are enforced with exclusively created
// marker files, so several processes sharing the directory agree on a winner.
type ResumeRepository struct {
	root string
	mu   sync.Mutex
}

// NewResumeRepository creates a new scheduled resume repository.
func NewResumeRepository(root string) *ResumeRepository {
	return &ResumeRepository{root: root}
}

func (rr *ResumeRepository) dir() string {
	return filepath.Join(rr.root, "scheduled_resumes")
}

func (rr *ResumeRepository) path(id string) string {
	return filepath.Join(rr.dir(), id+".json")
}

func (rr *ResumeRepository) claimMarker(id string) string {
	return filepath.Join(rr.dir(), "claims", id)
}

func (rr *ResumeRepository) pendingMarker(executionID string) string {
	return filepath.Join(rr.dir(), "pending", executionID)
}

// createMarker creates path exclusively. It reports false when the marker already exists.
func createMarker(path string, content string) (bool, error) {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) // #nosec G304 -- path is built from validated IDs
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to create marker: %w", err)
	}

	_, err = f.WriteString(content)
	closeErr := f.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		return false, fmt.Errorf("failed to write marker: %w", err)
	}

	return true, nil
}

// ScheduleResume stores a new pending resume.
func (rr *ResumeRepository) ScheduleResume(_ context.Context, resume *models.ScheduledResume) error {
	if resume == nil {
		return errors.New("scheduled resume cannot be nil")
	}

	if resume.ID == "" {
		resume.ID = uuid.NewString()
	}

	if err := validateID(resume.ID); err != nil {
		return fmt.Errorf("invalid scheduled resume ID: %w", err)
	}

	if err := validateID(resume.ExecutionID); err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	created, err := createMarker(rr.pendingMarker(resume.ExecutionID), resume.ID)
	if err != nil {
		return persistence.NewResumeError("ScheduleResume", resume.ID, err)
	}

	if !created {
		return persistence.NewResumeError("ScheduleResume", resume.ID, persistence.ErrResumeAlreadyScheduled)
	}

	now := time.Now().UTC()
	resume.Status = models.ResumeStatusPending
	resume.CreatedAt = now
	resume.UpdatedAt = now

	err = writeJSON(rr.path(resume.ID), resume)
	if err != nil {
		_ = os.Remove(rr.pendingMarker(resume.ExecutionID))

		return persistence.NewResumeError("ScheduleResume", resume.ID, err)
	}

	return nil
}

// DueResumes returns pending resumes whose time has come, oldest first.
func (rr *ResumeRepository) DueResumes(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledResume, error) {
	resumes, err := rr.filter(ctx, func(r *models.ScheduledResume) bool {
		return r.IsDue(now)
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(resumes) > limit {
		resumes = resumes[:limit]
	}

	return resumes, nil
}

// ClaimResume moves a resume from pending to processing. Only one caller wins.
func (rr *ResumeRepository) ClaimResume(ctx context.Context, id string) error {
	resume, err := rr.GetResume(ctx, id)
	if err != nil {
		return err
	}

	if resume.Status != models.ResumeStatusPending {
		return persistence.NewResumeError("ClaimResume", id, persistence.ErrClaimConflict)
	}

	won, err := createMarker(rr.claimMarker(id), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return persistence.NewResumeError("ClaimResume", id, err)
	}

	if !won {
		return persistence.NewResumeError("ClaimResume", id, persistence.ErrClaimConflict)
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	resume.Status = models.ResumeStatusProcessing
	resume.UpdatedAt = time.Now().UTC()

	err = writeJSON(rr.path(id), resume)
	if err != nil {
		return persistence.NewResumeError("ClaimResume", id, err)
	}

	err = os.Remove(rr.pendingMarker(resume.ExecutionID))
	if err != nil && !os.IsNotExist(err) {
		return persistence.NewResumeError("ClaimResume", id, err)
	}

	return nil
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
	rr.mu.Lock()
	defer rr.mu.Unlock()

	resume, err := rr.GetResume(ctx, id)
	if err != nil {
		return err
	}

	wasPending := resume.Status == models.ResumeStatusPending
	resume.Status = status
	resume.ErrorMessage = message
	resume.UpdatedAt = time.Now().UTC()

	err = writeJSON(rr.path(id), resume)
	if err != nil {
		return persistence.NewResumeError(op, id, err)
	}

	if wasPending {
		_ = os.Remove(rr.pendingMarker(resume.ExecutionID))
	}

	return nil
}

// GetResume retrieves a scheduled resume by its ID.
func (rr *ResumeRepository) GetResume(_ context.Context, id string) (*models.ScheduledResume, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewResumeError("GetResume", id, persistence.ErrResumeNotFound)
	}

	var resume models.ScheduledResume

	err := readJSON(rr.path(id), &resume)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewResumeError("GetResume", id, persistence.ErrResumeNotFound)
		}

		return nil, persistence.NewResumeError("GetResume", id, err)
	}

	return &resume, nil
}

// GetResumesByExecution returns every resume scheduled for an execution, oldest first.
func (rr *ResumeRepository) GetResumesByExecution(
	ctx context.Context,
	executionID string,
) ([]*models.ScheduledResume, error) {
	return rr.filter(ctx, func(r *models.ScheduledResume) bool {
		return r.ExecutionID == executionID
	})
}

func (rr *ResumeRepository) filter(
	ctx context.Context,
	keep func(*models.ScheduledResume) bool,
) ([]*models.ScheduledResume, error) {
	ids, err := listJSON(rr.dir())
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled resumes: %w", err)
	}

	resumes := make([]*models.ScheduledResume, 0)

	for _, id := range ids {
		resume, err := rr.GetResume(ctx, id)
		if err != nil {
			return nil, err
		}

		if keep(resume) {
			resumes = append(resumes, resume)
		}
	}

	sort.Slice(resumes, func(i, j int) bool {
		if resumes[i].ResumeAt.Equal(resumes[j].ResumeAt) {
			return resumes[i].CreatedAt.Before(resumes[j].CreatedAt)
		}

		return resumes[i].ResumeAt.Before(resumes[j].ResumeAt)
	})

	return resumes, nil
}
