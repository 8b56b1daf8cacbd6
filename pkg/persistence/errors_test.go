package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		t.Parallel()

		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		resumeErr := persistence.NewResumeError("ClaimResume", "resume-1", persistence.ErrClaimConflict)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsClaimConflict(resumeErr))
		assert.False(t, persistence.IsResumeNotFound(resumeErr))
		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
	})

	t.Run("wrapped sentinels are detected", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("execution exec-1: %w", persistence.ErrExecutionNotFound)

		assert.True(t, persistence.IsExecutionNotFound(err))
		assert.False(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("error messages carry context", func(t *testing.T) {
		t.Parallel()

		err := persistence.NewResumeError("GetResume", "resume-9", persistence.ErrResumeNotFound)

		assert.Equal(t, "GetResume operation failed for scheduled resume resume-9: scheduled resume not found", err.Error())
		assert.Equal(t, persistence.ErrResumeNotFound, err.Unwrap())
	})
}

func TestPersistenceError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := fmt.Errorf("run: %w", persistence.NewPersistenceError("Commit", "exec-1", cause))

	assert.True(t, persistence.IsPersistenceError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Commit failed for execution exec-1: disk full")
	assert.False(t, persistence.IsPersistenceError(cause))
}
