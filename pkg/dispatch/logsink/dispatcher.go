// Package logsink provides a dispatcher that only logs deliveries, for local runs and demos.
package logsink

import (
	"context"
	"log/slog"

	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/google/uuid"
)

// Dispatcher logs every delivery and reports success.
type Dispatcher struct {
	logger *slog.Logger
}

// NewDispatcher creates a log-only dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger.With("module", "log_dispatcher"),
	}
}

func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, body string) (*dispatch.Result, error) {
	id := uuid.NewString()
	d.logger.InfoContext(ctx, "Email delivered", "delivery_id", id, "to", to, "subject", subject, "body_length", len(body))

	return &dispatch.Result{ID: id}, nil
}

func (d *Dispatcher) SendSMS(ctx context.Context, to, message string) (*dispatch.Result, error) {
	id := uuid.NewString()
	d.logger.InfoContext(ctx, "SMS delivered", "delivery_id", id, "to", to, "message", message)

	return &dispatch.Result{ID: id}, nil
}

func (d *Dispatcher) CreateTask(ctx context.Context, task dispatch.Task) (*dispatch.Result, error) {
	id := uuid.NewString()
	d.logger.InfoContext(ctx, "Task created",
		"delivery_id", id,
		"title", task.Title,
		"assignee", task.Assignee,
		"priority", task.Priority,
		"due_date", task.DueDate)

	return &dispatch.Result{ID: id}, nil
}

func (d *Dispatcher) SendNotification(ctx context.Context, notification dispatch.Notification) (*dispatch.Result, error) {
	id := uuid.NewString()
	d.logger.InfoContext(ctx, "Notification sent",
		"delivery_id", id,
		"user_id", notification.UserID,
		"title", notification.Title)

	return &dispatch.Result{ID: id}, nil
}
