package queue_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/dukex/autoflow/pkg/dispatch/queue"
	"github.com/dukex/autoflow/pkg/testutil"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_PushesMessages(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: testutil.StartRedis(t)})

	t.Cleanup(func() {
		_ = client.Close()
	})

	d := queue.NewDispatcher(client, "test:outbox", slog.Default())

	result, err := d.SendEmail(ctx, "jane@example.com", "Invoice overdue", "Please pay")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "test:outbox:email", result.Payload["queue"])

	_, err = d.SendNotification(ctx, dispatch.Notification{UserID: "user-1", Title: "Heads up", Message: "Job done"})
	require.NoError(t, err)

	raw, err := client.LPop(ctx, "test:outbox:email").Result()
	require.NoError(t, err)

	var msg dispatch.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, result.ID, msg.ID)
	assert.Equal(t, dispatch.ChannelEmail, msg.Channel)
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Invoice overdue", msg.Subject)

	length, err := client.LLen(ctx, "test:outbox:notification").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestDispatcher_Key(t *testing.T) {
	t.Parallel()

	d := queue.NewDispatcher(nil, "", slog.Default())
	assert.Equal(t, "autoflow:outbox:sms", d.Key(dispatch.ChannelSMS))
}
