// Package redisstore keeps scheduled resumes in Redis so that several workers
// can share the due queue without a relational database.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "autoflow"

// ResumeRepository stores each resume as a JSON value and indexes pending ones
// in a sorted set scored by their due time. Removing a member from the set is
// the claim: Redis reports exactly one successful ZREM per member.
type ResumeRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// Option configures a ResumeRepository.
type Option func(*ResumeRepository)

// WithPrefix sets the key prefix. Defaults to "autoflow".
func WithPrefix(prefix string) Option {
	return func(r *ResumeRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewResumeRepository creates a repository on top of an existing client.
func NewResumeRepository(client redis.UniversalClient, logger *slog.Logger, opts ...Option) *ResumeRepository {
	repo := &ResumeRepository{
		client: client,
		logger: logger.With("module", "redis_resume_store"),
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(repo)
	}

	return repo
}

// Connect parses a redis:// URL, verifies the connection and returns the repository with its closer.
func Connect(
	ctx context.Context,
	logger *slog.Logger,
	url string,
	opts ...Option,
) (*ResumeRepository, func(context.Context) error, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	closer := func(context.Context) error {
		return client.Close()
	}

	return NewResumeRepository(client, logger, opts...), closer, nil
}

func (r *ResumeRepository) resumeKey(id string) string {
	return r.prefix + ":resume:" + id
}

func (r *ResumeRepository) dueKey() string {
	return r.prefix + ":resumes:due"
}

func (r *ResumeRepository) pendingKey(executionID string) string {
	return r.prefix + ":resumes:pending:" + executionID
}

func (r *ResumeRepository) executionKey(executionID string) string {
	return r.prefix + ":resumes:execution:" + executionID
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// ScheduleResume stores a new pending resume.
func (r *ResumeRepository) ScheduleResume(ctx context.Context, resume *models.ScheduledResume) error {
	if resume == nil {
		return errors.New("scheduled resume cannot be nil")
	}

	if resume.ID == "" {
		resume.ID = uuid.NewString()
	}

	acquired, err := r.client.SetNX(ctx, r.pendingKey(resume.ExecutionID), resume.ID, 0).Result()
	if err != nil {
		return persistence.NewResumeError("ScheduleResume", resume.ID, err)
	}

	if !acquired {
		return persistence.NewResumeError("ScheduleResume", resume.ID, persistence.ErrResumeAlreadyScheduled)
	}

	now := time.Now().UTC()
	resume.Status = models.ResumeStatusPending
	resume.ResumeAt = resume.ResumeAt.UTC()
	resume.CreatedAt = now
	resume.UpdatedAt = now

	data, err := json.Marshal(resume)
	if err != nil {
		_ = r.client.Del(ctx, r.pendingKey(resume.ExecutionID)).Err()

		return persistence.NewResumeError("ScheduleResume", resume.ID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.resumeKey(resume.ID), data, 0)
		pipe.SAdd(ctx, r.executionKey(resume.ExecutionID), resume.ID)
		pipe.ZAdd(ctx, r.dueKey(), redis.Z{Score: score(resume.ResumeAt), Member: resume.ID})

		return nil
	})
	if err != nil {
		_ = r.client.Del(ctx, r.pendingKey(resume.ExecutionID)).Err()

		return persistence.NewResumeError("ScheduleResume", resume.ID, err)
	}

	r.logger.DebugContext(ctx, "scheduled resume",
		"resume_id", resume.ID,
		"execution_id", resume.ExecutionID,
		"resume_at", resume.ResumeAt,
	)

	return nil
}

// DueResumes returns pending resumes whose time has come, oldest first.
func (r *ResumeRepository) DueResumes(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledResume, error) {
	if limit <= 0 {
		limit = 10
	}

	ids, err := r.client.ZRangeByScore(ctx, r.dueKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(score(now), 'f', 0, 64),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query due resumes: %w", err)
	}

	resumes, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	due := make([]*models.ScheduledResume, 0, len(resumes))

	for _, resume := range resumes {
		if resume.IsDue(now) {
			due = append(due, resume)
		}
	}

	return due, nil
}

// ClaimResume removes the resume from the due set. The caller whose ZREM succeeds owns it.
func (r *ResumeRepository) ClaimResume(ctx context.Context, id string) error {
	removed, err := r.client.ZRem(ctx, r.dueKey(), id).Result()
	if err != nil {
		return persistence.NewResumeError("ClaimResume", id, err)
	}

	if removed == 0 {
		_, err := r.GetResume(ctx, id)
		if err != nil {
			return err
		}

		return persistence.NewResumeError("ClaimResume", id, persistence.ErrClaimConflict)
	}

	resume, err := r.GetResume(ctx, id)
	if err != nil {
		return err
	}

	resume.Status = models.ResumeStatusProcessing
	resume.UpdatedAt = time.Now().UTC()

	err = r.store(ctx, resume, true)
	if err != nil {
		return persistence.NewResumeError("ClaimResume", id, err)
	}

	return nil
}

// CompleteResume marks a claimed resume as completed.
func (r *ResumeRepository) CompleteResume(ctx context.Context, id string) error {
	return r.finish(ctx, "CompleteResume", id, models.ResumeStatusCompleted, "")
}

// FailResume marks a resume as failed with the given message.
func (r *ResumeRepository) FailResume(ctx context.Context, id string, message string) error {
	return r.finish(ctx, "FailResume", id, models.ResumeStatusFailed, message)
}

func (r *ResumeRepository) finish(
	ctx context.Context,
	op, id string,
	status models.ResumeStatus,
	message string,
) error {
	resume, err := r.GetResume(ctx, id)
	if err != nil {
		return err
	}

	wasPending := resume.Status == models.ResumeStatusPending
	resume.Status = status
	resume.ErrorMessage = message
	resume.UpdatedAt = time.Now().UTC()

	if wasPending {
		err = r.client.ZRem(ctx, r.dueKey(), id).Err()
		if err != nil {
			return persistence.NewResumeError(op, id, err)
		}
	}

	err = r.store(ctx, resume, wasPending)
	if err != nil {
		return persistence.NewResumeError(op, id, err)
	}

	return nil
}

// store writes the resume and, when it left the pending state, frees the execution's pending slot.
func (r *ResumeRepository) store(ctx context.Context, resume *models.ScheduledResume, releasePending bool) error {
	data, err := json.Marshal(resume)
	if err != nil {
		return fmt.Errorf("failed to marshal scheduled resume: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.resumeKey(resume.ID), data, 0)

		if releasePending {
			pipe.Del(ctx, r.pendingKey(resume.ExecutionID))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store scheduled resume: %w", err)
	}

	return nil
}

// GetResume retrieves a scheduled resume by its ID.
func (r *ResumeRepository) GetResume(ctx context.Context, id string) (*models.ScheduledResume, error) {
	data, err := r.client.Get(ctx, r.resumeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewResumeError("GetResume", id, persistence.ErrResumeNotFound)
		}

		return nil, persistence.NewResumeError("GetResume", id, err)
	}

	var resume models.ScheduledResume

	err = json.Unmarshal(data, &resume)
	if err != nil {
		return nil, persistence.NewResumeError("GetResume", id, err)
	}

	return &resume, nil
}

// GetResumesByExecution returns every resume scheduled for an execution, oldest first.
func (r *ResumeRepository) GetResumesByExecution(
	ctx context.Context,
	executionID string,
) ([]*models.ScheduledResume, error) {
	ids, err := r.client.SMembers(ctx, r.executionKey(executionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes of execution %s: %w", executionID, err)
	}

	resumes, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(resumes, func(i, j int) bool {
		return resumes[i].ResumeAt.Before(resumes[j].ResumeAt)
	})

	return resumes, nil
}

func (r *ResumeRepository) load(ctx context.Context, ids []string) ([]*models.ScheduledResume, error) {
	resumes := make([]*models.ScheduledResume, 0, len(ids))

	for _, id := range ids {
		resume, err := r.GetResume(ctx, id)
		if err != nil {
			if persistence.IsResumeNotFound(err) {
				r.logger.WarnContext(ctx, "indexed resume is missing", "resume_id", id)

				continue
			}

			return nil, err
		}

		resumes = append(resumes, resume)
	}

	return resumes, nil
}
