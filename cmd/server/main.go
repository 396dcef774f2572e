package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firmdocs/internal/alert/noop"
	sesalert "firmdocs/internal/alert/ses"
	"firmdocs/internal/config"
	"firmdocs/internal/handler"
	redisidem "firmdocs/internal/idempotency/redis"
	"firmdocs/internal/logging"
	"firmdocs/internal/metrics"
	"firmdocs/internal/policy"
	"firmdocs/internal/port"
	"firmdocs/internal/repository/memory"
	"firmdocs/internal/repository/postgres"
	"firmdocs/internal/router"
	"firmdocs/internal/service"
	miniostorage "firmdocs/internal/storage/minio"
	s3storage "firmdocs/internal/storage/s3"
	"firmdocs/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	documentRepo := postgres.NewDocumentRepo(db)
	auditRepo := postgres.NewAuditRepo(db)

	// Initialize storage
	var objects port.ObjectStorage
	switch cfg.Storage.Provider {
	case "minio":
		objects, err = miniostorage.NewMinIOStore(ctx, &cfg.Storage)
	default:
		objects, err = s3storage.NewS3Store(ctx, &cfg.Storage)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Provider, err)
	}

	// Idempotency tokens
	var tokens port.IdempotencyStore
	if cfg.Redis.Enabled {
		rdb, err := redisidem.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		tokens = redisidem.NewStore(rdb)
		logger.Info("idempotency tokens stored in redis", "addr", cfg.Redis.Addr)
	} else {
		tokens = memory.NewIdempotencyStore()
		logger.Warn("redis disabled; idempotency tokens kept in process memory")
	}

	// Operator alerts
	var alerter port.Alerter
	switch cfg.Alert.Provider {
	case "ses":
		alerter, err = sesalert.NewSESAlerter(ctx, cfg.Alert.Region, cfg.Alert.FromAddress, cfg.Alert.Recipients)
		if err != nil {
			return fmt.Errorf("failed to initialize SES alerter: %w", err)
		}
	default:
		alerter = noop.NewNoopAlerter(logger)
	}

	roles, err := policy.Load(cfg.Policy.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to load role policy: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics, err := metrics.NewPipeline(registry)
	if err != nil {
		return fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	httpMetrics, err := metrics.NewHTTP(registry)
	if err != nil {
		return fmt.Errorf("failed to register http metrics: %w", err)
	}

	// Initialize services
	chain := service.NewVersionChain(documentRepo, service.VersionChainConfig{
		Policy: service.ContentPolicy{
			MaxSizeBytes:     cfg.Storage.MaxFileSizeBytes(),
			AllowedMimeTypes: cfg.Storage.AllowedMimeTypes,
		},
		DuplicateWindow: cfg.Idempotency.DuplicateWindow,
		PageSize:        cfg.Versions.PageSize,
	}, logger)
	recorder := service.NewAuditRecorder(auditRepo, service.AuditRecorderConfig{
		AppendRetries: cfg.Audit.AppendRetries,
		RetryBackoff:  cfg.Audit.RetryBackoff,
		PageSize:      cfg.Audit.PageSize,
	}, logger)
	evaluator := service.NewPermissionEvaluator()
	pipeline := service.NewDocumentPipeline(
		evaluator, chain, recorder, tokens, alerter, pipelineMetrics,
		service.PipelineConfig{TokenTTL: cfg.Idempotency.TokenTTL}, logger,
	)
	content := service.NewContentStore(objects, cfg.Storage.MaxFileSizeBytes(), logger)
	verifier := service.NewTokenVerifier(cfg.JWT)

	var workers []func(context.Context)
	if cfg.Retention.Enabled {
		sweeper := service.NewRetentionSweeper(chain, pipeline, service.RetentionSweepConfig{
			Interval:  cfg.Retention.Interval,
			BatchSize: cfg.Retention.BatchSize,
		}, logger)
		workers = append(workers, sweeper.Start)
	}
	// Stopping runs before the deferred db.Close, so workers drain first.
	defer startWorkers(ctx, workers...)()

	// Setup router
	r := router.Setup(router.Deps{
		Verifier:       verifier,
		Roles:          roles,
		DocumentH:      handler.NewDocumentHandler(pipeline, content, evaluator, logger),
		AuditH:         handler.NewAuditHandler(pipeline, logger),
		HealthH:        handler.NewHealthHandler(db),
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// startWorkers runs each worker in its own goroutine. The returned stop
// function cancels them and waits until every one has returned.
func startWorkers(ctx context.Context, workers ...func(context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w(ctx)
		}()
	}
	return func() {
		cancel()
		wg.Wait()
	}
}
