package redisstore_test

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/persistence/redisstore"
	"github.com/dukex/autoflow/pkg/testutil"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T) *redisstore.ResumeRepository {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	client := redis.NewClient(&redis.Options{Addr: testutil.StartRedis(t)})
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.NewResumeRepository(client, slog.Default(), redisstore.WithPrefix("test-"+uuid.NewString()))
}

func TestResumeRepository_Lifecycle(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due := &models.ScheduledResume{
		WorkflowID:     "wf-1",
		ExecutionID:    "exec-1",
		ResumeAt:       now.Add(-time.Minute),
		ResumeFromStep: 3,
		Context:        models.ExecutionContext{"resume_from_step": 3, "user_id": "user-1"},
	}
	require.NoError(t, repo.ScheduleResume(ctx, due))

	err := repo.ScheduleResume(ctx, &models.ScheduledResume{ExecutionID: "exec-1", ResumeAt: now})
	assert.ErrorIs(t, err, persistence.ErrResumeAlreadyScheduled)

	future := &models.ScheduledResume{WorkflowID: "wf-1", ExecutionID: "exec-2", ResumeAt: now.Add(time.Hour)}
	require.NoError(t, repo.ScheduleResume(ctx, future))

	resumes, err := repo.DueResumes(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, resumes, 1)
	assert.Equal(t, due.ID, resumes[0].ID)
	assert.Equal(t, "user-1", resumes[0].Context.UserID())

	var (
		wins atomic.Int32
		wg   sync.WaitGroup
	)

	for range 6 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if repo.ClaimResume(ctx, due.ID) == nil {
				wins.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	claimed, err := repo.GetResume(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResumeStatusProcessing, claimed.Status)

	resumes, err = repo.DueResumes(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, resumes)

	// The claimed resume frees the slot for the next delay of the same execution.
	next := &models.ScheduledResume{WorkflowID: "wf-1", ExecutionID: "exec-1", ResumeAt: now.Add(time.Hour)}
	require.NoError(t, repo.ScheduleResume(ctx, next))

	require.NoError(t, repo.CompleteResume(ctx, due.ID))
	require.NoError(t, repo.FailResume(ctx, future.ID, "cancelled"))

	resumes, err = repo.DueResumes(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, resumes, 1)
	assert.Equal(t, next.ID, resumes[0].ID)

	byExecution, err := repo.GetResumesByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, byExecution, 2)
	assert.Equal(t, due.ID, byExecution[0].ID)

	_, err = repo.GetResume(ctx, "missing")
	assert.True(t, persistence.IsResumeNotFound(err))
	assert.True(t, persistence.IsResumeNotFound(repo.ClaimResume(ctx, "missing")))
}
