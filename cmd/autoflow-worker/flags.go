package main

import (
	"github.com/dukex/autoflow/pkg/cmd"
	"github.com/dukex/autoflow/pkg/resume"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "autoflow-worker"

func workerFlags() []cli.Flag {
	return append(cmd.EngineFlags(),
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.IntFlag{
			Name:    "resume-batch-size",
			Usage:   "Maximum number of due resumes processed per tick",
			Value:   resume.DefaultBatchSize,
			Sources: cli.EnvVars("RESUME_BATCH_SIZE"),
		},
	)
}

func workerID(command *cli.Command) string {
	id := command.String("worker-id")
	if id == "" {
		id = "worker-" + uuid.New().String()[:8]
	}

	return id
}
