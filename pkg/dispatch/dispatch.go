// Package dispatch defines the boundary to the channel providers that deliver
// emails, text messages and notifications and create tasks.
package dispatch

import (
	"context"
	"errors"
	"time"
)

// Channels handled by a Dispatcher.
const (
	ChannelEmail        = "email"
	ChannelSMS          = "sms"
	ChannelTask         = "task"
	ChannelNotification = "notification"
)

// ErrDeliveryFailed is wrapped by dispatchers when a provider rejects a delivery.
var ErrDeliveryFailed = errors.New("delivery failed")

// Result is the provider's answer to a delivery. The engine only looks at the
// error returned next to it; ID and Payload are stored verbatim as step output.
type Result struct {
	ID      string         `json:"id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Task is a to-do item created for a user.
type Task struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Notification is an in-app message for a user.
type Notification struct {
	UserID  string         `json:"user_id,omitempty"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Dispatcher delivers fully rendered actions. Implementations do not retry;
// a returned error is reported as the step's failure.
type Dispatcher interface {
	SendEmail(ctx context.Context, to, subject, body string) (*Result, error)
	SendSMS(ctx context.Context, to, message string) (*Result, error)
	CreateTask(ctx context.Context, task Task) (*Result, error)
	SendNotification(ctx context.Context, notification Notification) (*Result, error)
}

// Message is the channel-independent envelope used by dispatchers that forward
// deliveries to another system.
type Message struct {
	ID           string        `json:"id"`
	Channel      string        `json:"channel"`
	To           string        `json:"to,omitempty"`
	Subject      string        `json:"subject,omitempty"`
	Body         string        `json:"body,omitempty"`
	Task         *Task         `json:"task,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// EmailMessage builds the envelope for an email.
func EmailMessage(id, to, subject, body string) Message {
	return Message{ID: id, Channel: ChannelEmail, To: to, Subject: subject, Body: body, CreatedAt: time.Now().UTC()}
}

// SMSMessage builds the envelope for a text message.
func SMSMessage(id, to, message string) Message {
	return Message{ID: id, Channel: ChannelSMS, To: to, Body: message, CreatedAt: time.Now().UTC()}
}

// TaskMessage builds the envelope for a task.
func TaskMessage(id string, task Task) Message {
	return Message{ID: id, Channel: ChannelTask, To: task.Assignee, Task: &task, CreatedAt: time.Now().UTC()}
}

// NotificationMessage builds the envelope for a notification.
func NotificationMessage(id string, notification Notification) Message {
	return Message{
		ID:           id,
		Channel:      ChannelNotification,
		To:           notification.UserID,
		Notification: &notification,
		CreatedAt:    time.Now().UTC(),
	}
}
