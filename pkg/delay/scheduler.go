package delay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autoflow/pkg/executionlog"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/google/uuid"
)

// ErrNotDelayStep is returned when Handle receives a step without a delay config.
var ErrNotDelayStep = errors.New("step is not a delay step")

// Decision tells the coordinator what happened to the run at a delay step.
type Decision struct {
	Suspended bool
	Delay     time.Duration
	Resume    *models.ScheduledResume
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Scheduler handles delay steps.
type Scheduler struct {
	resumes persistence.ResumeRepository
	log     *executionlog.Logger
	logger  *slog.Logger
	now     func() time.Time
	sleep   Sleeper
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSleeper replaces the in-process wait.
func WithSleeper(sleep Sleeper) Option {
	return func(s *Scheduler) {
		s.sleep = sleep
	}
}

// NewScheduler creates a Scheduler persisting resumes to resumes and committing
// paused executions through log.
func NewScheduler(
	resumes persistence.ResumeRepository,
	log *executionlog.Logger,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	scheduler := &Scheduler{
		resumes: resumes,
		log:     log,
		logger:  logger.With("module", "delay_scheduler"),
		now:     time.Now,
		sleep:   Sleep,
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	return scheduler
}

// Handle processes the delay step at index. Test runs and delays shorter than
// SuspendThreshold wait in-process for at most MaxInlineWait and continue.
// Longer delays persist a ScheduledResume for index+1, pause the execution and
// commit it; the caller must stop iterating when Decision.Suspended is true.
//
// Both paths append a StepResult for the delay step to the execution.
// Errors wrapping *persistence.PersistenceError mean the pause could not be
// made durable.
func (s *Scheduler) Handle(
	ctx context.Context,
	step *models.Step,
	index int,
	execution *models.WorkflowExecution,
) (Decision, error) {
	cfg, ok := step.Config.(*models.DelayConfig)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrNotDelayStep, step.ID)
	}

	delayMs := DelayMs(cfg.DelayType, cfg.DelayValue)
	delay := DelayDuration(cfg.DelayType, cfg.DelayValue)
	startedAt := s.now().UTC()

	logger := s.logger.With(
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
		"step_id", step.ID,
		"step_index", index,
		"delay", delay,
	)

	if execution.TriggerData.IsTest() || delayMs < float64(SuspendThreshold.Milliseconds()) {
		wait := min(delay, MaxInlineWait)

		err := s.sleep(ctx, wait)
		if err != nil {
			return Decision{}, fmt.Errorf("delay step %s interrupted: %w", step.ID, err)
		}

		execution.AppendStep(models.StepResult{
			StepID:      step.ID,
			StepIndex:   index,
			StepType:    models.StepTypeDelay,
			Status:      models.StepStatusCompleted,
			StartedAt:   startedAt,
			CompletedAt: s.now().UTC(),
			OutputData: map[string]any{
				"delay_ms":  delay.Milliseconds(),
				"waited_ms": wait.Milliseconds(),
				"inline":    true,
			},
		})

		logger.DebugContext(ctx, "delay resolved inline", "waited", wait)

		return Decision{Suspended: false, Delay: delay}, nil
	}

	resumeAt := startedAt.Add(delay)

	resume := &models.ScheduledResume{
		ID:             uuid.NewString(),
		WorkflowID:     execution.WorkflowID,
		ExecutionID:    execution.ID,
		ResumeAt:       resumeAt,
		ResumeFromStep: index + 1,
		Context:        resumeContext(execution.TriggerData, index+1),
	}

	err := s.resumes.ScheduleResume(ctx, resume)
	if err != nil {
		return Decision{}, persistence.NewPersistenceError("schedule resume", execution.ID, err)
	}

	execution.AppendStep(models.StepResult{
		StepID:      step.ID,
		StepIndex:   index,
		StepType:    models.StepTypeDelay,
		Status:      models.StepStatusCompleted,
		StartedAt:   startedAt,
		CompletedAt: startedAt,
		OutputData: map[string]any{
			"delay_ms":         delay.Milliseconds(),
			"delay_type":       string(cfg.DelayType),
			"delay_value":      cfg.DelayValue,
			"resume_at":        resumeAt,
			"resume_from_step": index + 1,
			"resume_id":        resume.ID,
		},
	})

	err = execution.TransitionTo(models.ExecutionStatusPaused)
	if err != nil {
		return Decision{}, err
	}

	execution.PausedAt = &startedAt
	execution.ResumeAt = &resumeAt

	err = s.log.Commit(ctx, execution)
	if err != nil {
		return Decision{}, err
	}

	logger.InfoContext(ctx, "execution paused", "resume_at", resumeAt, "resume_id", resume.ID)

	return Decision{Suspended: true, Delay: delay, Resume: resume}, nil
}

func resumeContext(execCtx models.ExecutionContext, resumeFromStep int) models.ExecutionContext {
	return execCtx.WithoutResume().Merge(map[string]any{
		models.ContextKeyResumeFromStep: resumeFromStep,
	})
}
