package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"PortfolioLedger/internal/config"
	"PortfolioLedger/internal/core"
	"PortfolioLedger/internal/event"
	"PortfolioLedger/internal/ingestion"
	"PortfolioLedger/internal/observability"
	"PortfolioLedger/internal/persistence"
	"PortfolioLedger/internal/scheduler"
	"PortfolioLedger/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLoggerWithLevel("portfolioledger", observability.ParseLogLevel(cfg.LogLevel))

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("PortfolioLedger stopped with error")
	}
	log.Info().Msg("PortfolioLedger shutdown complete")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Str("db_driver", cfg.DBDriver).Msg("PortfolioLedger starting")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// --- Context with graceful shutdown ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database ---
	if err := ensureDataDir(cfg); err != nil {
		return err
	}
	store, err := persistence.Open(ctx, persistence.Options{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBDSN,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	log.Info().Str("dialect", string(store.Dialect())).Msg("database connected")

	migrator, err := persistence.NewMigrator(store.DB(), store.Dialect())
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("migrations applied")

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()
	healthChecker.AddCheck("database", func(ctx context.Context) error {
		return store.DB().PingContext(ctx)
	})

	// --- Engine ---
	// Envelopes are only produced when NATS is configured.
	var publishChan chan *event.EventEnvelope
	if cfg.NATSURL != "" {
		publishChan = make(chan *event.EventEnvelope, cfg.PublishChanSize)
	}
	engineCfg := core.Config{
		Location:            loc,
		IdempotencyCapacity: cfg.IdempotencyLRUCapacity,
		PublishChan:         publishChan,
		Metrics:             metrics,
		Logger:              log,
	}
	engine := core.NewEngine(store, engineCfg)

	if err := engine.WarmIdempotency(ctx, cfg.IdempotencyWarmLimit); err != nil {
		log.Warn().Err(err).Msg("idempotency warm-up failed, continuing cold")
	}

	if cfg.DefaultOwner != "" {
		owner, err := engine.EnsureOwner(ctx, cfg.DefaultOwner, cfg.Currency())
		if err != nil {
			return fmt.Errorf("ensure default owner: %w", err)
		}
		log.Info().Int64("owner_id", owner.ID).Str("owner", owner.Name).Msg("default owner ready")
	}

	errChan := make(chan error, 8)
	var subscriber *ingestion.NATSSubscriber

	// --- NATS ingestion and outbound events ---
	if cfg.NATSURL != "" {
		nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, log)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		healthChecker.AddCheck("nats", func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})

		if err := ingestion.EnsureStreams(ctx, js); err != nil {
			return fmt.Errorf("ensure NATS streams: %w", err)
		}
		if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
			return fmt.Errorf("ensure outbound stream: %w", err)
		}

		rawEventChan := make(chan ingestion.RawEvent, cfg.IngestChanSize)
		subscriber = ingestion.NewNATSSubscriber(js, rawEventChan, log)
		if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}

		dispatcher := ingestion.NewDispatcher(engine, metrics, log)
		go func() {
			errChan <- dispatcher.Run(ctx, rawEventChan)
		}()

		publisher := ingestion.NewOutboundPublisher(js, publishChan, metrics, log)
		go func() {
			errChan <- publisher.Run(ctx)
		}()
	} else {
		log.Info().Msg("NATS disabled, serving HTTP only")
	}

	// --- HTTP API ---
	httpServer, err := server.NewHTTPServer(server.HTTPConfig{
		Addr:    cfg.HTTPAddr,
		Engine:  engine,
		Health:  healthChecker,
		Metrics: metrics,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	// --- gRPC health ---
	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, healthChecker, log)
	go func() {
		errChan <- grpcServer.Start(ctx, 5*time.Second)
	}()

	// --- Prometheus metrics ---
	go func() {
		errChan <- serveMetrics(ctx, cfg.MetricsAddr, log)
	}()

	// --- Scheduler ---
	var sched *scheduler.Scheduler
	if cfg.EODCron != "" {
		sched = scheduler.New(ctx, loc, 5*time.Minute, metrics, log)
		if err := sched.AddJob(cfg.EODCron, scheduler.NewEODSummaryJob(engine, log)); err != nil {
			return fmt.Errorf("schedule eod summary: %w", err)
		}
		sched.Start()
	}

	healthChecker.SetReady(true)
	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("grpc", cfg.GRPCAddr).
		Str("metrics", cfg.MetricsAddr).
		Str("timezone", loc.String()).
		Msg("PortfolioLedger ready")

	// --- Wait for shutdown signal ---
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("received signal, shutting down")
	case runErr = <-errChan:
		if runErr != nil {
			log.Error().Err(runErr).Msg("component failed, shutting down")
		}
	}

	// --- Graceful shutdown ---
	healthChecker.SetReady(false)
	cancel()
	if subscriber != nil {
		subscriber.Stop()
	}
	if sched != nil {
		sched.Stop()
	}
	// Let the HTTP and gRPC servers finish draining before the store closes.
	time.Sleep(100 * time.Millisecond)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// serveMetrics exposes /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		srv.Shutdown(shutCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// ensureDataDir creates the parent directory of a file-backed SQLite
// database.
func ensureDataDir(cfg *config.Config) error {
	dialect, err := persistence.ParseDialect(cfg.DBDriver)
	if err != nil || dialect != persistence.DialectSQLite {
		return nil
	}
	path := strings.TrimPrefix(cfg.DBDSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}
