package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/otelhelper"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

// EngineConfig selects the backends of an engine process.
type EngineConfig struct {
	ServiceName      string
	WorkerID         string
	DatabaseURL      string
	ResumeStoreURL   string
	DispatcherURL    string
	DispatcherAPIKey string
	EventBus         string
	KafkaBrokers     []string
	Tracing          bool
}

// Engine holds the wired components shared by the API and the worker.
type Engine struct {
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Coordinator *workflow.Coordinator

	closers []func(context.Context) error
}

// EngineFlags are the flags every engine process accepts.
func EngineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL for persistence (file://path or postgres://...)",
			Value:   "file://./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "resume-store-url",
			Usage:   "Optional redis:// URL storing scheduled resumes",
			Sources: cli.EnvVars("RESUME_STORE_URL"),
		},
		&cli.StringFlag{
			Name:    "dispatcher-url",
			Usage:   "Channel provider boundary (log://, http(s)://gateway, redis://outbox)",
			Value:   "log://",
			Sources: cli.EnvVars("DISPATCHER_URL"),
		},
		&cli.StringFlag{
			Name:    "dispatcher-api-key",
			Usage:   "Bearer token sent to an HTTP dispatcher gateway",
			Sources: cli.EnvVars("DISPATCHER_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers used by the kafka event bus",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// EngineConfigFromCommand reads the EngineFlags of command.
func EngineConfigFromCommand(command *cli.Command, serviceName, workerID string) EngineConfig {
	return EngineConfig{
		ServiceName:      serviceName,
		WorkerID:         workerID,
		DatabaseURL:      command.String("database-url"),
		ResumeStoreURL:   command.String("resume-store-url"),
		DispatcherURL:    command.String("dispatcher-url"),
		DispatcherAPIKey: command.String("dispatcher-api-key"),
		EventBus:         command.String("event-bus"),
		KafkaBrokers:     command.StringSlice("kafka-brokers"),
		Tracing:          command.Bool("tracing"),
	}
}

// NewEngine opens every backend named in cfg. On error, whatever was already
// opened is closed again.
func NewEngine(ctx context.Context, logger *slog.Logger, cfg EngineConfig) (*Engine, error) {
	engine := &Engine{}

	if cfg.Tracing {
		_, shutdown, err := otelhelper.NewTracer(ctx, cfg.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		engine.closers = append(engine.closers, shutdown)
	}

	store, err := NewPersistence(ctx, logger, cfg.DatabaseURL, cfg.ResumeStoreURL)
	if err != nil {
		return nil, engine.abort(ctx, err)
	}

	engine.Persistence = store
	engine.closers = append(engine.closers, store.Close)

	dispatcher, closeDispatcher, err := NewDispatcher(ctx, logger, cfg.DispatcherURL, cfg.DispatcherAPIKey)
	if err != nil {
		return nil, engine.abort(ctx, err)
	}

	engine.closers = append(engine.closers, closeDispatcher)

	bus, err := NewEventBus(cfg.EventBus, cfg.KafkaBrokers, cfg.ServiceName, logger)
	if err != nil {
		return nil, engine.abort(ctx, err)
	}

	engine.EventBus = bus
	engine.closers = append(engine.closers, func(context.Context) error { return bus.Close() })

	engine.Coordinator = workflow.NewCoordinator(store, dispatcher, logger,
		workflow.WithPublisher(bus),
		workflow.WithWorkerID(cfg.WorkerID),
	)

	return engine, nil
}

func (e *Engine) abort(ctx context.Context, err error) error {
	return errors.Join(err, e.Close(ctx))
}

// Close releases the backends in reverse opening order.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error

	for i := len(e.closers) - 1; i >= 0; i-- {
		err := e.closers[i](ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	e.closers = nil

	return errors.Join(errs...)
}
