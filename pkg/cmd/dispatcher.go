package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/dukex/autoflow/pkg/dispatch/logsink"
	"github.com/dukex/autoflow/pkg/dispatch/queue"
	"github.com/dukex/autoflow/pkg/dispatch/webhook"
	redis "github.com/redis/go-redis/v9"
)

func noopCloser(context.Context) error { return nil }

// NewDispatcher picks the channel provider boundary from dispatcherURL:
// log:// writes deliveries to the logger, http(s):// posts them to a gateway
// and redis:// pushes them onto outbox lists.
func NewDispatcher(
	ctx context.Context,
	logger *slog.Logger,
	dispatcherURL string,
	apiKey string,
) (dispatch.Dispatcher, func(context.Context) error, error) {
	switch scheme(dispatcherURL) {
	case "log", "":
		return logsink.NewDispatcher(logger), noopCloser, nil
	case "http", "https":
		var opts []webhook.Option
		if apiKey != "" {
			opts = append(opts, webhook.WithHeader("Authorization", "Bearer "+apiKey))
		}

		dispatcher, err := webhook.NewDispatcher(dispatcherURL, logger, opts...)
		if err != nil {
			return nil, nil, err
		}

		return dispatcher, noopCloser, nil
	case "redis", "rediss":
		options, err := redis.ParseURL(dispatcherURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid dispatcher URL: %w", err)
		}

		client := redis.NewClient(options)

		err = client.Ping(ctx).Err()
		if err != nil {
			_ = client.Close()

			return nil, nil, fmt.Errorf("failed to connect to dispatcher redis: %w", err)
		}

		closer := func(context.Context) error {
			return client.Close()
		}

		return queue.NewDispatcher(client, queue.DefaultPrefix, logger), closer, nil
	default:
		return nil, nil, fmt.Errorf("%w: dispatcher %s", ErrUnsupportedProvider, scheme(dispatcherURL))
	}
}
