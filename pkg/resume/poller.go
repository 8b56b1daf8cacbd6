// Package resume continues paused executions once their scheduled resume time is reached.
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/otelhelper"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/workflow"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBatchSize is how many due resumes one tick claims.
	DefaultBatchSize = 10
	// DefaultSchedule drives ticks when no schedule is configured.
	DefaultSchedule = "@every 1m"
)

// ErrAlreadyStarted is returned by Start on a running poller.
var ErrAlreadyStarted = errors.New("poller already started")

// Runner continues an execution. *workflow.Coordinator implements it.
type Runner interface {
	Run(
		ctx context.Context,
		workflowID string,
		execCtx models.ExecutionContext,
		opts ...workflow.RunOption,
	) (*models.WorkflowExecution, error)
}

// Summary counts what a single tick did.
type Summary struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Poller periodically claims due resumes and hands them to the Runner.
// Several pollers may share one ResumeRepository; each resume is run by the
// poller that wins its claim.
type Poller struct {
	resumes   persistence.ResumeRepository
	runner    Runner
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	batchSize int
	schedule  string
	workerID  string

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// Option configures a Poller.
type Option func(*Poller)

// WithBatchSize limits how many due resumes a tick picks up.
func WithBatchSize(size int) Option {
	return func(p *Poller) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// WithSchedule sets the cron expression driving ticks after Start.
func WithSchedule(schedule string) Option {
	return func(p *Poller) {
		if schedule != "" {
			p.schedule = schedule
		}
	}
}

// WithClock replaces time.Now when selecting due resumes.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// WithWorkerID tags logs and spans with the worker running the poller.
func WithWorkerID(workerID string) Option {
	return func(p *Poller) {
		p.workerID = workerID
	}
}

// NewPoller creates a Poller that claims resumes from resumes and continues them with runner.
func NewPoller(resumes persistence.ResumeRepository, runner Runner, logger *slog.Logger, opts ...Option) *Poller {
	poller := &Poller{
		resumes:   resumes,
		runner:    runner,
		logger:    logger.With("module", "resume_poller"),
		tracer:    otelhelper.Tracer(),
		now:       time.Now,
		batchSize: DefaultBatchSize,
		schedule:  DefaultSchedule,
	}

	for _, opt := range opts {
		opt(poller)
	}

	if poller.workerID != "" {
		poller.logger = poller.logger.With("worker_id", poller.workerID)
	}

	return poller
}

// Tick processes one batch of due resumes. Failures of individual resumes are
// recorded on the resume and never stop the rest of the batch; the returned
// error only reports that the batch could not be loaded.
func (p *Poller) Tick(ctx context.Context) (Summary, error) {
	due, err := p.resumes.DueResumes(ctx, p.now().UTC(), p.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load due resumes: %w", err)
	}

	summary := Summary{Due: len(due)}

	for _, resume := range due {
		if ctx.Err() != nil {
			break
		}

		switch p.process(ctx, resume) {
		case models.ResumeStatusCompleted:
			summary.Completed++
		case models.ResumeStatusFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	if summary.Due > 0 {
		p.logger.InfoContext(ctx, "processed due resumes",
			"due", summary.Due,
			"completed", summary.Completed,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
		)
	}

	return summary, ctx.Err()
}

// process claims and runs one resume, returning the final resume status, or
// pending when another poller got it first.
func (p *Poller) process(ctx context.Context, resume *models.ScheduledResume) models.ResumeStatus {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "resume.process",
		attribute.String(otelhelper.ResumeIDKey, resume.ID),
		attribute.String(otelhelper.ExecutionIDKey, resume.ExecutionID),
		attribute.String(otelhelper.WorkflowIDKey, resume.WorkflowID),
		attribute.String(otelhelper.WorkerIDKey, p.workerID),
	)
	defer span.End()

	logger := p.logger.With(
		"resume_id", resume.ID,
		"execution_id", resume.ExecutionID,
		"workflow_id", resume.WorkflowID,
	)

	err := p.resumes.ClaimResume(ctx, resume.ID)
	if err != nil {
		if persistence.IsClaimConflict(err) {
			logger.DebugContext(ctx, "resume claimed by another worker")
		} else {
			logger.ErrorContext(ctx, "failed to claim resume", "error", err)
			otelhelper.SetError(span, err)
		}

		return models.ResumeStatusPending
	}

	execCtx := resume.Context.Merge(map[string]any{
		models.ContextKeyResumeFromStep: resume.ResumeFromStep,
	})

	execution, err := p.runner.Run(ctx, resume.WorkflowID, execCtx, workflow.WithExecutionID(resume.ExecutionID))

	switch {
	case err != nil:
		otelhelper.SetError(span, err)

		return p.fail(ctx, logger, resume, err.Error())
	case execution.Status == models.ExecutionStatusFailed:
		return p.fail(ctx, logger, resume, execution.ErrorMessage)
	}

	err = p.resumes.CompleteResume(ctx, resume.ID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to mark resume completed", "error", err)
	}

	logger.InfoContext(ctx, "resume completed", "execution_status", execution.Status)

	return models.ResumeStatusCompleted
}

func (p *Poller) fail(ctx context.Context, logger *slog.Logger, resume *models.ScheduledResume, message string) models.ResumeStatus {
	logger.WarnContext(ctx, "resume failed", "error", message)

	err := p.resumes.FailResume(ctx, resume.ID, message)
	if err != nil {
		logger.ErrorContext(ctx, "failed to mark resume failed", "error", err)
	}

	return models.ResumeStatusFailed
}

// Start runs Tick on the configured schedule until Stop is called or ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return ErrAlreadyStarted
	}

	schedule, err := cron.ParseStandard(p.schedule)
	if err != nil {
		return fmt.Errorf("invalid resume schedule '%s': %w", p.schedule, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cronLogger := cronLogger{logger: p.logger}

	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))
	p.cancel = cancel

	p.cron.Schedule(schedule, cron.FuncJob(func() {
		_, err := p.Tick(ctx)
		if err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "resume tick failed", "error", err)
		}
	}))

	p.cron.Start()
	p.logger.InfoContext(ctx, "resume poller started", "schedule", p.schedule, "batch_size", p.batchSize)

	return nil
}

// Stop cancels the running tick and waits for it to return.
func (p *Poller) Stop(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron == nil {
		return
	}

	p.cancel()

	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}

	p.cron = nil
	p.logger.InfoContext(ctx, "resume poller stopped")
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
