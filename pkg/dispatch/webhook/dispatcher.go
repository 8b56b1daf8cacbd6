// Package webhook provides a dispatcher that forwards deliveries to an HTTP provider gateway.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// ErrGatewayURLInvalid is returned when the gateway URL is empty.
var ErrGatewayURLInvalid = errors.New("invalid gateway URL")

// Dispatcher posts each delivery as JSON to {baseURL}/{channel}.
// It makes exactly one attempt per delivery.
type Dispatcher struct {
	baseURL string
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

// Option customizes the dispatcher.
type Option func(*Dispatcher)

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) Option {
	return func(d *Dispatcher) {
		d.headers[key] = value
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// NewDispatcher creates a gateway dispatcher.
func NewDispatcher(baseURL string, logger *slog.Logger, opts ...Option) (*Dispatcher, error) {
	if baseURL == "" {
		return nil, ErrGatewayURLInvalid
	}

	d := &Dispatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: map[string]string{},
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("module", "webhook_dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, body string) (*dispatch.Result, error) {
	return d.post(ctx, dispatch.EmailMessage(uuid.NewString(), to, subject, body))
}

func (d *Dispatcher) SendSMS(ctx context.Context, to, message string) (*dispatch.Result, error) {
	return d.post(ctx, dispatch.SMSMessage(uuid.NewString(), to, message))
}

func (d *Dispatcher) CreateTask(ctx context.Context, task dispatch.Task) (*dispatch.Result, error) {
	return d.post(ctx, dispatch.TaskMessage(uuid.NewString(), task))
}

func (d *Dispatcher) SendNotification(ctx context.Context, notification dispatch.Notification) (*dispatch.Result, error) {
	return d.post(ctx, dispatch.NotificationMessage(uuid.NewString(), notification))
}

func (d *Dispatcher) post(ctx context.Context, msg dispatch.Message) (*dispatch.Result, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", msg.Channel, err)
	}

	url := d.baseURL + "/" + msg.Channel

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.ID)

	for key, value := range d.headers {
		req.Header.Set(key, value)
	}

	d.logger.DebugContext(ctx, "Posting delivery", "channel", msg.Channel, "url", url, "delivery_id", msg.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s delivery request failed: %w", msg.Channel, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s gateway returned status %d: %s",
			dispatch.ErrDeliveryFailed, msg.Channel, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	result := &dispatch.Result{ID: msg.ID}

	var payloadResp map[string]any

	err = json.Unmarshal(body, &payloadResp)
	if err != nil {
		d.logger.WarnContext(ctx, "Gateway response is not JSON, ignoring body", "error", err)

		return result, nil
	}

	if id, ok := payloadResp["id"].(string); ok && id != "" {
		result.ID = id
	}

	result.Payload = payloadResp

	return result, nil
}
