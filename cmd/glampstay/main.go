package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"glampstay/internal/app/commands"
	settlementapp "glampstay/internal/app/handlers/settlement"
	"glampstay/internal/app/middleware"
	"glampstay/internal/app/outbox"
	"glampstay/internal/app/policies"
	"glampstay/internal/app/queries"
	"glampstay/internal/app/services/settlement"
	"glampstay/internal/app/uow"
	"glampstay/internal/infra/broker/kafka"
	"glampstay/internal/infra/cache"
	"glampstay/internal/infra/config"
	mongostore "glampstay/internal/infra/db/mongo"
	"glampstay/internal/infra/db/postgres"
	"glampstay/internal/infra/directory"
	ginserver "glampstay/internal/infra/http/gin"
	"glampstay/internal/infra/obs"
	infraoutbox "glampstay/internal/infra/outbox"
	"glampstay/internal/infra/proofs"
	"glampstay/internal/infra/storage/memory"
	"glampstay/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)
	metrics := obs.NewMetrics()

	app, err := buildApplication(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Metrics: metrics}, app.health, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(app.worker.Run(gctx))
	})
	if app.consumer != nil {
		g.Go(func() error {
			return ignoreCanceled(app.consumer.Run(gctx, []string{cfg.ReceiptTopic}))
		})
	}
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "proofs", cfg.ProofVerifier)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("glampstay stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("glampstay stopped")
}

type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	worker   *infraoutbox.Worker
	consumer *kafka.Consumer
	closers  []func(context.Context) error
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}

// storage bundles what one storage driver provides.
type storage struct {
	factory uow.UoWFactory
	outbox  infraoutbox.Store
	reviews proofs.Reviews
	ping    obs.Check
	idem    func(ctx context.Context) (middleware.IdempotencyStore, error)
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *obs.Metrics) (*application, error) {
	app := &application{}
	checks := map[string]obs.Check{}

	store, err := openStorage(ctx, cfg, app)
	if err != nil {
		return nil, err
	}
	checks["storage"] = store.ping

	idStore, err := openIdempotency(ctx, cfg, store, app)
	if err != nil {
		return nil, err
	}

	var producer infraoutbox.Producer = infraoutbox.LogProducer{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig("glampstay-settlement"))
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return kp.Close() })
		producer = kp
	}
	worker := infraoutbox.NewWorker(store.outbox, producer)
	worker.Interval = cfg.OutboxPollInterval
	worker.TopicPrefix = cfg.KafkaTopicPrefix
	worker.Backoff = cfg.RetryBackoff
	worker.Logger = logger
	app.worker = worker

	verifier, err := openVerifier(cfg, store, logger, app, checks)
	if err != nil {
		return nil, err
	}

	agents, err := directory.ParseAgentRates(cfg.AgentRates)
	if err != nil {
		return nil, err
	}
	if agents.Len() == 0 {
		logger.Warn("no agent commission rates configured, agent bookings will be rejected")
	}

	service := &settlement.Service{
		UoW:          store.factory,
		Proofs:       verifier,
		Agents:       agents,
		Actors:       directory.NewActors(cfg.FinanceActors, cfg.OperatorActors),
		Cancellation: directory.Cancellation{Cutoff: cfg.CancellationCutoff},
		Encoder:      outbox.JSONEventEncoder{IDGenerator: uuid.NewString},
		Metrics:      metrics,
		Logger:       logger,
		Now:          time.Now,
		NewID:        uuid.NewString,
	}

	commandBus := commands.NewInMemoryBus()
	settlementapp.RegisterCommands(commandBus, service)
	queryBus := queries.NewInMemoryBus()
	settlementapp.RegisterQueries(queryBus, service)

	logger.Info("buses ready", "commands", commandBus.Keys(), "queries", queryBus.Keys())

	validator := middleware.NewStructValidator()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.InstrumentCommands(metrics, logger),
		middleware.Validation(validator),
		middleware.Authorization(middleware.ActorRequired{}),
		middleware.Idempotency(idStore, nil),
		middleware.OutboxFlush(worker, func(err error) {
			logger.Warn("outbox flush failed", "error", err)
		}),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.InstrumentQueries(metrics, logger),
		middleware.QueryValidation(validator),
		middleware.ReadOnlyTransaction(store.factory),
	)

	app.handlers = ginserver.Handlers{
		Settlement: ginserver.SettlementHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
	}
	app.health = obs.HealthHandlers{Checks: checks, Timeout: 2 * time.Second, Metrics: metrics}
	return app, nil
}

func openStorage(ctx context.Context, cfg config.Config, app *application) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storage{}, fmt.Errorf("mongo: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		if err := client.EnsureIndexes(ctx); err != nil {
			return storage{}, fmt.Errorf("mongo indexes: %w", err)
		}
		reviews, err := mongostore.NewReceiptReviewStore(ctx, client.DB, cfg.ReceiptGroup)
		if err != nil {
			return storage{}, fmt.Errorf("mongo receipt reviews: %w", err)
		}
		return storage{
			factory: mongostore.Factory{DB: client.DB},
			outbox:  mongostore.NewOutboxStore(client.DB),
			reviews: reviews,
			ping:    client.Ping,
			idem: func(ctx context.Context) (middleware.IdempotencyStore, error) {
				return mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
			},
		}, nil
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return storage{}, err
		}
		app.closers = append(app.closers, func(context.Context) error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool); err != nil {
			return storage{}, err
		}
		factory := postgres.Factory{Pool: pool}
		return storage{
			factory: factory,
			outbox:  postgres.OutboxStore{Pool: pool},
			reviews: postgres.ReceiptReviewStore{Pool: pool, Consumer: cfg.ReceiptGroup},
			ping:    factory.Ping,
		}, nil
	default:
		store := memory.NewStore()
		return storage{factory: store, outbox: store, reviews: proofs.NewRegistry(), ping: store.Ping}, nil
	}
}

func openIdempotency(ctx context.Context, cfg config.Config, store storage, app *application) (middleware.IdempotencyStore, error) {
	switch cfg.IdempotencyDriver {
	case "redis":
		client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		return cache.NewIdempotencyStore(client, cfg.IdempotencyTTL), nil
	case config.DriverMongo:
		if store.idem == nil {
			return nil, fmt.Errorf("idempotency: driver %q unavailable for storage %q", cfg.IdempotencyDriver, cfg.StorageDriver)
		}
		return store.idem(ctx)
	default:
		return memory.NewIdempotencyStore(cfg.IdempotencyTTL), nil
	}
}

func openVerifier(cfg config.Config, store storage, logger *slog.Logger, app *application, checks map[string]obs.Check) (policies.ProofVerifier, error) {
	if cfg.ProofVerifier == config.VerifierS3 {
		receipts, err := s3.NewReceiptStore(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			return nil, fmt.Errorf("receipt store: %w", err)
		}
		checks["receipts"] = receipts.Ping
		return receipts, nil
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("no kafka brokers configured, receipt reviews will not be received")
		return store.reviews, nil
	}
	handler := &proofs.ReceiptHandler{Reviews: store.reviews, Logger: logger}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ReceiptGroup, kafka.NewConfig(cfg.ReceiptGroup), handler)
	if err != nil {
		return nil, fmt.Errorf("receipt consumer: %w", err)
	}
	consumer.Logger = logger
	app.consumer = consumer
	app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
	return store.reviews, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
