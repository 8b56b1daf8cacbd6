package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukex/autoflow/pkg/cmd"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/testutil"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestAPI(t *testing.T) (*API, *cmd.Engine) {
	t.Helper()

	engine, err := cmd.NewEngine(context.Background(), slog.Default(), cmd.EngineConfig{
		ServiceName:   serviceName,
		DatabaseURL:   "file://" + t.TempDir(),
		DispatcherURL: "log://",
		EventBus:      "gochannel",
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = engine.Close(context.Background()) })

	api, err := NewAPI(slog.Default(), engine)
	require.NoError(t, err)

	return api, engine
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootAndLiveness(t *testing.T) {
	api, _ := setupTestAPI(t)
	app := api.App()

	status, body := get(t, app, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Autoflow API", body)

	status, body = get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestAPI_JobStatusEventRunsWorkflowInProcess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api, engine := setupTestAPI(t)
	require.NoError(t, api.ServeExecutionRequests(ctx))

	wf := testutil.CreateTestWorkflow([]*models.Step{
		testutil.TriggerStep("t", models.TriggerTypeJobStatusChanged),
		testutil.EmailStep("email", "Hi {{client.name}}", "Done"),
	})
	require.NoError(t, engine.Persistence.WorkflowRepository().Save(ctx, wf))

	app := api.App()

	req := httptest.NewRequest(http.MethodPost, "/events/job-status", strings.NewReader(
		`{"job":{"id":"job-1"},"to_status":"completed","client":{"name":"Jane","email":"jane@example.com"}}`,
	))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		executions, err := engine.Persistence.ExecutionRepository().GetExecutionsByWorkflow(ctx, wf.ID)

		return err == nil && len(executions) == 1 && executions[0].Status == models.ExecutionStatusCompleted
	}, 5*time.Second, 50*time.Millisecond)
}
