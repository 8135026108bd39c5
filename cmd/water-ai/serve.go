package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/miradorstack/water-ai/internal/api"
	"github.com/miradorstack/water-ai/internal/cache"
	"github.com/miradorstack/water-ai/internal/config"
	"github.com/miradorstack/water-ai/internal/engine"
	"github.com/miradorstack/water-ai/internal/httpapi"
	"github.com/miradorstack/water-ai/internal/ingest"
	"github.com/miradorstack/water-ai/internal/metrics"
	"github.com/miradorstack/water-ai/internal/registry"
	"github.com/miradorstack/water-ai/internal/report"
	"github.com/miradorstack/water-ai/internal/repo"
	"github.com/miradorstack/water-ai/internal/services"
	"github.com/miradorstack/water-ai/internal/utils"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and REST servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting water-ai",
		slog.String("version", version),
		slog.String("grpc_address", cfg.Server.Address),
		slog.String("http_address", cfg.HTTP.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	cacheProvider := newCacheProvider(cfg.Cache, logger)
	defer cacheProvider.Close()

	rules, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		return fmt.Errorf("load rule pack: %w", err)
	}

	holder := registry.DirHolder(cfg.Models.Dir, logger)
	pipeline := engine.NewPipeline(
		logger,
		holder,
		engine.NewPredictionCache(cacheProvider, cfg.Cache.PredictionTTL, logger),
		engine.NewOptimizer(rules),
	)
	if holder.Current().Len() == 0 {
		logger.Warn("no model artifacts loaded", slog.String("dir", cfg.Models.Dir))
	}

	store, err := repo.OpenSQLite(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	logger.Info("database opened", slog.String("path", store.Path()))

	objects, err := newObjectStore(cfg.Reports)
	if err != nil {
		return fmt.Errorf("configure report storage: %w", err)
	}

	service := services.NewTreatmentService(logger, pipeline, services.Options{
		Store:    store,
		Renderer: report.NewGenerator(cfg.Reports.Title),
		Objects:  objects,
	})
	if err := service.SyncModelMetadata(parent); err != nil {
		logger.Warn("sync model metadata failed", slog.Any("error", err))
	}

	grpcServer, err := api.NewServer(cfg.Server, services.NewGRPCService(logger, service))
	if err != nil {
		return fmt.Errorf("create gRPC server: %w", err)
	}

	httpServer, err := httpapi.NewServer(cfg.HTTP, httpapi.NewRouter(httpapi.Options{
		Logger:    logger,
		Service:   service,
		HTTP:      cfg.HTTP,
		RateLimit: cfg.RateLimit,
		Version:   version,
	}))
	if err != nil {
		return fmt.Errorf("create HTTP server: %w", err)
	}

	ctx, stop := context.WithCancel(parent)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", grpcServer.Address()))
		if serveErr := grpcServer.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", slog.String("address", httpServer.Address()))
		if serveErr := httpServer.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	consumerDone := make(chan struct{})
	if cfg.Ingest.Enabled {
		consumer := ingest.NewConsumer(ingest.NewKafkaReader(cfg.Ingest), service, logger)
		go func() {
			defer close(consumerDone)
			defer consumer.Close()
			logger.Info("sensor consumer started",
				slog.String("topic", cfg.Ingest.Topic),
				slog.Any("brokers", cfg.Ingest.Brokers))
			if err := consumer.Run(ctx); err != nil {
				logger.Error("sensor consumer exited", slog.Any("error", err))
				stop()
			}
		}()
	} else {
		close(consumerDone)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", slog.Any("error", err))
	}
	grpcServer.Shutdown(shutdownCtx)

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("sensor consumer did not stop before timeout")
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("water-ai stopped")
	return nil
}

func newCacheProvider(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	switch cfg.Backend {
	case "none":
		return cache.NoopProvider{}
	case "redis", "valkey":
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable, falling back to memory", slog.Any("error", err))
			return cache.NewMemoryProvider()
		}
		return provider
	default:
		return cache.NewMemoryProvider()
	}
}

func newObjectStore(cfg config.ReportsConfig) (repo.ObjectStore, error) {
	switch cfg.Backend {
	case "http":
		if cfg.Endpoint == "" {
			return nil, errors.New("reports.endpoint is required for the http backend")
		}
		return repo.NewHTTPObjectStore(cfg.Endpoint, cfg.Bucket, cfg.APIKey, cfg.Timeout), nil
	case "", "local":
		return repo.NewLocalObjectStore(cfg.LocalDir, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("unknown reports backend %q", cfg.Backend)
	}
}
