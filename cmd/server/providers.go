package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/aggregate"
	"github.com/septivank/farm-telemetry/internal/config"
	"github.com/septivank/farm-telemetry/internal/db"
	"github.com/septivank/farm-telemetry/internal/httpapi"
	"github.com/septivank/farm-telemetry/internal/model"
	"github.com/septivank/farm-telemetry/internal/mq"
	"github.com/septivank/farm-telemetry/internal/repository"
	"github.com/septivank/farm-telemetry/internal/service"
	"github.com/septivank/farm-telemetry/internal/snapshot"
	"github.com/septivank/farm-telemetry/internal/timeseries"
	"github.com/septivank/farm-telemetry/internal/validator"
)

// coreOptions provides everything except the optional broker wiring
func coreOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			newLogger,
			ProvideZones,
			ProvideTimeSeriesStore,
			ProvideValidator,
			ProvideSnapshot,
			ProvideWriter,
			ProvideCoordinator,
			ProvideEngine,
			ProvideHandler,
			httpapi.NewRouter,
		),
		fx.Invoke(startHTTPServer),
	)
}

// brokerOptions wires RabbitMQ when configured, otherwise a no-op publisher
func brokerOptions(cfg *config.Config) fx.Option {
	if !cfg.RabbitMQ.Enabled() {
		return fx.Provide(func() service.EventPublisher { return service.NoopPublisher{} })
	}
	return fx.Options(
		fx.Provide(
			ProvideMQConnection,
			ProvidePublisher,
			func(p *mq.Publisher) service.EventPublisher { return p },
		),
		fx.Invoke(startConsumer),
	)
}

// ProvideZones builds the fixed zone set
func ProvideZones(cfg *config.Config) (*model.Zones, error) {
	return model.NewZones(cfg.Zones.Names, cfg.Zones.IDs)
}

// ProvideTimeSeriesStore selects the backend and guards it with a deadline
// and a circuit breaker
func ProvideTimeSeriesStore(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (timeseries.Store, error) {
	var backend timeseries.Store
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory time-series store; history is lost on restart")
		backend = timeseries.NewMemoryStore()
	default:
		pool, err := ProvideDBPool(lc, logger, cfg)
		if err != nil {
			return nil, err
		}
		backend = repository.NewRepository(pool)
	}

	return timeseries.NewGuardedStore(backend, timeseries.GuardedConfig{
		Timeout:         cfg.Storage.Timeout,
		BreakerFailures: cfg.Storage.BreakerFailures,
		BreakerOpen:     cfg.Storage.BreakerOpen,
	}, logger), nil
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(zones *model.Zones, cfg *config.Config) (*validator.Validator, error) {
	return validator.NewValidator(zones, cfg.Validation.RequiredFields, cfg.Validation.TimestampToleranceMinutes, cfg.Location)
}

// ProvideSnapshot creates the in-memory snapshot store
func ProvideSnapshot(zones *model.Zones) *snapshot.Store {
	return snapshot.NewStore(zones)
}

// ProvideWriter creates the async writer and ties it to the app lifecycle
func ProvideWriter(lc fx.Lifecycle, store timeseries.Store, cfg *config.Config, logger *zap.Logger) *service.Writer {
	w := service.NewWriter(store, service.WriterConfig{
		QueueSize:  cfg.Storage.WriteQueueSize,
		Workers:    cfg.Storage.WriteWorkers,
		MaxRetries: cfg.Storage.WriteMaxRetries,
		// outlive the storage deadline so hung backends count against the breaker
		Timeout: cfg.Storage.Timeout + time.Second,
	}, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return w.Stop(ctx)
		},
	})
	return w
}

// ProvideCoordinator creates the ingestion coordinator
func ProvideCoordinator(
	v *validator.Validator,
	snap *snapshot.Store,
	w *service.Writer,
	publisher service.EventPublisher,
	logger *zap.Logger,
) *service.Coordinator {
	return service.NewCoordinator(v, snap, w, publisher, logger)
}

// ProvideEngine creates the aggregation engine
func ProvideEngine(store timeseries.Store, zones *model.Zones, cfg *config.Config) *aggregate.Engine {
	return aggregate.NewEngine(store, zones, cfg.Location)
}

// ProvideHandler creates the HTTP handler
func ProvideHandler(
	coordinator *service.Coordinator,
	snap *snapshot.Store,
	engine *aggregate.Engine,
	store timeseries.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *httpapi.Handler {
	return httpapi.NewHandler(httpapi.Deps{
		Coordinator: coordinator,
		Snapshot:    snap,
		Engine:      engine,
		Health:      store,
		Logger:      logger,
		Debug:       cfg.Debug,
	})
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the accepted-reading event publisher
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	p, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.EventsRoutingKey, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.Close()
		},
	})
	return p, nil
}
