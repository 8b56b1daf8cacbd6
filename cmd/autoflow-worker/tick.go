package main

import (
	"context"

	"github.com/dukex/autoflow/pkg/cmd"
	"github.com/dukex/autoflow/pkg/log"
	"github.com/dukex/autoflow/pkg/resume"
	cli "github.com/urfave/cli/v3"
)

// NewTickCommand creates the command that processes one batch of due resumes and exits.
func NewTickCommand() *cli.Command {
	return &cli.Command{
		Name:  "tick",
		Usage: "Process one batch of due resumes and exit, for use with an external scheduler",
		Flags: workerFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			id := workerID(command)
			logger := log.WithModule(serviceName).With("worker_id", id)

			engine, err := cmd.NewEngine(ctx, logger, cmd.EngineConfigFromCommand(command, serviceName, id))
			if err != nil {
				return err
			}

			defer func() {
				err := engine.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close engine", "error", err)
				}
			}()

			poller := resume.NewPoller(engine.Persistence.ResumeRepository(), engine.Coordinator, logger,
				resume.WithBatchSize(command.Int("resume-batch-size")),
				resume.WithWorkerID(id),
			)

			summary, err := poller.Tick(ctx)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Resume tick finished",
				"due", summary.Due,
				"completed", summary.Completed,
				"failed", summary.Failed,
				"skipped", summary.Skipped,
			)

			return nil
		},
	}
}
