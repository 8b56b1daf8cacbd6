package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/autoflow/pkg/cmd"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/resume"
	"github.com/dukex/autoflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_RunsRequestedExecutions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := cmd.NewEngine(ctx, slog.Default(), cmd.EngineConfig{
		ServiceName:   serviceName,
		WorkerID:      "worker-test",
		DatabaseURL:   "file://" + t.TempDir(),
		DispatcherURL: "log://",
		EventBus:      "gochannel",
	})
	require.NoError(t, err)

	defer func() { _ = engine.Close(context.Background()) }()

	wf := testutil.CreateTestWorkflow([]*models.Step{
		testutil.TriggerStep("t", models.TriggerTypeJobStatusChanged),
		testutil.EmailStep("email", "Hi {{client.name}}", "Done"),
	})
	require.NoError(t, engine.Persistence.WorkflowRepository().Save(ctx, wf))

	poller := resume.NewPoller(engine.Persistence.ResumeRepository(), engine.Coordinator, slog.Default(),
		resume.WithSchedule("@every 1h"),
	)
	worker := NewWorker("worker-test", engine.EventBus, engine.Coordinator, poller, slog.Default())

	done := make(chan error, 1)

	go func() {
		done <- worker.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		err := engine.EventBus.Publish(ctx, wf.ID, events.ExecutionRequested{
			BaseEvent:   events.NewBaseEvent(events.ExecutionRequestedEvent, wf.ID),
			ExecutionID: "exec-from-bus",
			TriggerType: models.TriggerTypeJobStatusChanged,
			Context:     testutil.ClientContext(),
		})
		if err != nil {
			return false
		}

		execution, err := engine.Persistence.ExecutionRepository().GetExecution(ctx, "exec-from-bus")

		return err == nil && execution.Status == models.ExecutionStatusCompleted
	}, 5*time.Second, 100*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
