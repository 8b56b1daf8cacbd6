package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/autoflow/pkg/cmd"
	"github.com/dukex/autoflow/pkg/log"
	"github.com/dukex/autoflow/pkg/resume"
	cli "github.com/urfave/cli/v3"
)

// NewRunCommand creates the long-running worker command.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Consume execution requests and poll scheduled resumes until stopped",
		Flags: append(workerFlags(),
			&cli.StringFlag{
				Name:    "resume-schedule",
				Usage:   "Cron expression for resume polling",
				Value:   resume.DefaultSchedule,
				Sources: cli.EnvVars("RESUME_SCHEDULE"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			id := workerID(command)
			logger := log.WithModule(serviceName).With("worker_id", id)

			logger.InfoContext(ctx, "Initializing autoflow worker")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := cmd.NewEngine(ctx, logger, cmd.EngineConfigFromCommand(command, serviceName, id))
			if err != nil {
				return err
			}

			defer func() {
				err := engine.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close engine", "error", err)
				}
			}()

			poller := resume.NewPoller(engine.Persistence.ResumeRepository(), engine.Coordinator, logger,
				resume.WithBatchSize(command.Int("resume-batch-size")),
				resume.WithSchedule(command.String("resume-schedule")),
				resume.WithWorkerID(id),
			)

			return NewWorker(id, engine.EventBus, engine.Coordinator, poller, logger).Start(ctx)
		},
	}
}
