package logsink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_LogsDeliveries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	d := NewDispatcher(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	result, err := d.SendEmail(ctx, "jane@example.com", "Welcome", "Hello")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)

	_, err = d.SendSMS(ctx, "+15550100", "On our way")
	require.NoError(t, err)

	_, err = d.CreateTask(ctx, dispatch.Task{Title: "Call back", Assignee: "user-1"})
	require.NoError(t, err)

	_, err = d.SendNotification(ctx, dispatch.Notification{UserID: "user-1", Title: "Paid"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Email delivered")
	assert.Contains(t, out, "to=jane@example.com")
	assert.Contains(t, out, "SMS delivered")
	assert.Contains(t, out, "Task created")
	assert.Contains(t, out, "Notification sent")
	assert.Contains(t, out, "module=log_dispatcher")
}
