package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/app"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/clock"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/config"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/platform/kafka"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/platform/observability"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/storage/embedded"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/storage/postgres"
	transporthttp "github.com/jubayer-ahmed-ratul/plateshare-server/internal/transport/http"
	"github.com/jubayer-ahmed-ratul/plateshare-server/migrations"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// store is what the services and the health check need from a backend.
type store interface {
	app.AdmissionRepository
	app.DecisionRepository
	app.ViewRepository
	app.CatalogRepository
	Ping(ctx context.Context) error
	Close() error
}

func serveCommand(env envFile) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Action: func(c *cli.Context) error {
			cfg := config.FromContext(c)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(c.Context, cfg, env)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, env envFile) error {
	otelSettings := observability.Settings{
		Endpoint:   cfg.OtelEndpoint,
		AuthHeader: cfg.OtelAuthHeader,
		Insecure:   cfg.OtelInsecure,
	}

	tp, shutdownTracing, err := observability.SetupTracing(ctx, otelSettings)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	shutdownLogging, err := observability.SetupLogging(ctx, otelSettings)
	if err != nil {
		_ = shutdownTracing(ctx)
		return fmt.Errorf("setup logging: %w", err)
	}
	shutdownOtel := observability.JoinShutdown(shutdownLogging, shutdownTracing)

	logger, err := observability.NewLogger(observability.LoggerOptions{
		Level:  cfg.LogLevel,
		Bridge: cfg.OtelEndpoint != "",
	})
	if err != nil {
		_ = shutdownOtel(ctx)
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	switch {
	case env.err != nil:
		logger.Warn("failed to load .env", zap.Error(env.err))
	case env.path == "":
		logger.Warn(".env not found in current or parent directories")
	default:
		logger.Info("loaded env", zap.String("path", env.path))
	}

	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	st, err := openStore(startupCtx, cfg, logger)
	if err != nil {
		_ = shutdownOtel(context.Background())
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	opts, closePublisher, err := serviceOptions(cfg, tp, logger)
	if err != nil {
		_ = shutdownOtel(context.Background())
		return err
	}
	defer closePublisher()

	clk := clock.NewSystem()
	handler := transporthttp.NewRouter(transporthttp.Services{
		Catalog:   app.NewCatalogService(st, clk, opts...),
		Submitter: app.NewRequestService(st, clk, opts...),
		Decider:   app.NewDecisionService(st, clk, opts...),
		Viewer:    app.NewViewService(st, opts...),
		Health:    st,
	}, cfg.CORSOrigins, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api listening",
		zap.String("port", cfg.Port),
		zap.String("store_backend", cfg.StoreBackend),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := shutdownOtel(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, error) {
	switch cfg.StoreBackend {
	case config.BackendEmbedded:
		st, err := embedded.Open(cfg.EmbeddedDataDir)
		if err != nil {
			return nil, fmt.Errorf("open embedded store: %w", err)
		}
		logger.Info("embedded store opened", zap.String("dir", cfg.EmbeddedDataDir))
		return st, nil
	default:
		pool, err := connectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", zap.Strings("names", applied))
		}
		return postgres.NewStore(pool), nil
	}
}

func connectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func serviceOptions(cfg config.Config, tp trace.TracerProvider, logger *zap.Logger) ([]app.Option, func(), error) {
	policy, err := app.ParseAcceptPolicy(cfg.AcceptPolicy)
	if err != nil {
		return nil, nil, err
	}
	opts := []app.Option{
		app.WithLogger(logger),
		app.WithTracer(tp.Tracer(observability.ServiceName)),
		app.WithStoreTimeout(cfg.StoreTimeout),
		app.WithAcceptPolicy(policy),
		app.WithResubmitAfterRejection(cfg.AllowResubmit),
		app.WithTopListings(cfg.TopListingsLimit),
	}

	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka brokers not set, request events are not published")
		return opts, func() {}, nil
	}
	producer, err := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		ClientID: observability.ServiceName,
	}, tp)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka writer: %w", err)
	}
	publisher := kafka.NewPublisher(producer)
	closeFn := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close kafka publisher", zap.Error(err))
		}
	}
	return append(opts, app.WithPublisher(publisher)), closeFn, nil
}
