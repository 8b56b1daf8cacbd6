// Package queue provides a dispatcher that pushes deliveries onto Redis lists
// consumed by the channel provider workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key prefix of the outbox lists.
const DefaultPrefix = "autoflow:outbox"

// Dispatcher appends each delivery to the list {prefix}:{channel}.
// A successful push means the provider worker will pick the message up; delivery itself is theirs.
type Dispatcher struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewDispatcher creates a Redis outbox dispatcher.
func NewDispatcher(client redis.UniversalClient, prefix string, logger *slog.Logger) *Dispatcher {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Dispatcher{
		client: client,
		prefix: prefix,
		logger: logger.With("module", "queue_dispatcher", "prefix", prefix),
	}
}

// Key returns the list a channel's messages are pushed to.
func (d *Dispatcher) Key(channel string) string {
	return d.prefix + ":" + channel
}

func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, body string) (*dispatch.Result, error) {
	return d.push(ctx, dispatch.EmailMessage(uuid.NewString(), to, subject, body))
}

func (d *Dispatcher) SendSMS(ctx context.Context, to, message string) (*dispatch.Result, error) {
	return d.push(ctx, dispatch.SMSMessage(uuid.NewString(), to, message))
}

func (d *Dispatcher) CreateTask(ctx context.Context, task dispatch.Task) (*dispatch.Result, error) {
	return d.push(ctx, dispatch.TaskMessage(uuid.NewString(), task))
}

func (d *Dispatcher) SendNotification(ctx context.Context, notification dispatch.Notification) (*dispatch.Result, error) {
	return d.push(ctx, dispatch.NotificationMessage(uuid.NewString(), notification))
}

func (d *Dispatcher) push(ctx context.Context, msg dispatch.Message) (*dispatch.Result, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", msg.Channel, err)
	}

	length, err := d.client.RPush(ctx, d.Key(msg.Channel), payload).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to enqueue %s message: %w", dispatch.ErrDeliveryFailed, msg.Channel, err)
	}

	d.logger.DebugContext(ctx, "Delivery enqueued", "channel", msg.Channel, "delivery_id", msg.ID, "queue_length", length)

	return &dispatch.Result{
		ID:      msg.ID,
		Payload: map[string]any{"queue": d.Key(msg.Channel), "queue_length": length},
	}, nil
}
