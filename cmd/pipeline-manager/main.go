// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recruit-pipeline/internal/backend"
	"recruit-pipeline/internal/backend/blobstore"
	"recruit-pipeline/internal/backend/cache"
	"recruit-pipeline/internal/backend/postgres"
	"recruit-pipeline/internal/backend/rest"
	"recruit-pipeline/internal/common/aws"
	"recruit-pipeline/internal/common/camunda"
	"recruit-pipeline/internal/common/config"
	"recruit-pipeline/internal/common/database"
	commonhttp "recruit-pipeline/internal/common/http"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/common/observability"
	"recruit-pipeline/internal/common/validation"
	"recruit-pipeline/internal/notify"
	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/pipeline/feeds"
	"recruit-pipeline/internal/pipeline/merge"
	"recruit-pipeline/internal/pipeline/mutation"
	"recruit-pipeline/internal/transport/httpapi"

	am "recruit-pipeline/internal/workers/pipeline/apply-mutation"
	gcv "recruit-pipeline/internal/workers/pipeline/get-candidate-view"
	pr "recruit-pipeline/internal/workers/pipeline/provision-rounds"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("backend", cfg.Backend.Mode),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			zapLog.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	ctx := context.Background()
	var readiness []httpapi.Option

	// --- System of record ---
	var store backend.Store
	switch cfg.Backend.Mode {
	case config.BackendREST:
		httpClient := commonhttp.NewClient(config.GetDuration(cfg.Backend.REST.Timeout)).
			WithHeader("X-API-Key", cfg.Backend.REST.APIKey)
		store = rest.NewClient(cfg.Backend.REST.BaseURL, httpClient, log)
		zapLog.Info("REST backend configured", zap.String("baseURL", cfg.Backend.REST.BaseURL))

	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		if cfg.Database.Postgres.AutoMigrate {
			if err := pg.Migrate(ctx, postgres.Migrations, postgres.MigrationsDir); err != nil {
				zapLog.Fatal("postgres migration failed", zap.Error(err))
			}
			zapLog.Info("PostgreSQL migrations applied")
		}

		store = postgres.NewStore(pg.DB, log)
		readiness = append(readiness, httpapi.WithReadinessCheck("postgres", pg.Ping))
	}

	// --- Round cache ---
	if cfg.Database.Redis.Enabled() {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		zapLog.Info("Redis connected successfully")

		store = cache.New(store, rc.Client,
			time.Duration(cfg.Pipeline.RoundCacheTTL)*time.Second,
			time.Duration(cfg.Pipeline.ProvisionLockTTL)*time.Second,
			log,
		)
		readiness = append(readiness, httpapi.WithReadinessCheck("redis", rc.Ping))
	}

	validator, err := validation.NewValidator()
	if err != nil {
		zapLog.Fatal("schema validator init failed", zap.Error(err))
	}

	coordinator := mutation.NewCoordinator(store, validator, cfg.Pipeline, log)

	fetchOpts := []feeds.Option{}
	serviceOpts := []pipeline.Option{pipeline.WithObservability(obs)}
	if cfg.Pipeline.AutoProvisionRounds {
		fetchOpts = append(fetchOpts, feeds.WithRoundProvisioning(coordinator.Provision))
	}

	// --- Candidate documents ---
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")

		blobs := blobstore.New(esClient.Client, cfg.Pipeline.BlobIndex, log)
		fetchOpts = append(fetchOpts, feeds.WithBlobSource(blobs))
		serviceOpts = append(serviceOpts, pipeline.WithBlobSaver(blobs))
		readiness = append(readiness, httpapi.WithReadinessCheck("elasticsearch", esClient.Ping))
	}

	// --- Rejection events ---
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		serviceOpts = append(serviceOpts, pipeline.WithRejectionPublisher(notify.NewPublisher(snsClient, log)))
		zapLog.Info("Rejection events enabled", zap.String("topic", cfg.Notifications.SNS.TopicARN))
	}

	fetcher := feeds.NewFetcher(store, config.GetDuration(cfg.Pipeline.FetchTimeout), log, fetchOpts...)
	service := pipeline.NewService(fetcher, merge.New(cfg.Pipeline.Overrides), coordinator, log, serviceOpts...)

	// --- Job workers ---
	var (
		zeebeClient *camunda.Client
		registry    *camunda.WorkerRegistry
	)
	if cfg.Camunda.Enabled {
		zeebeClient, err = camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		readiness = append(readiness, httpapi.WithReadinessCheck("zeebe", zeebeClient.HealthCheck))

		registry = camunda.NewWorkerRegistry(zeebeClient.Raw(), log)

		viewCfg := config.GetWorkerConfig(cfg, gcv.TaskType)
		registry.Register(gcv.TaskType, viewCfg, gcv.NewHandler(gcv.LoadConfig(viewCfg), service, validator, log).Handle)

		mutationCfg := config.GetWorkerConfig(cfg, am.TaskType)
		registry.Register(am.TaskType, mutationCfg, am.NewHandler(am.LoadConfig(mutationCfg), service, log).Handle)

		roundsCfg := config.GetWorkerConfig(cfg, pr.TaskType)
		registry.Register(pr.TaskType, roundsCfg, pr.NewHandler(pr.LoadConfig(roundsCfg), service, log).Handle)

		zapLog.Info("Workers registered", zap.Strings("taskTypes", registry.TaskTypes()))
	}

	// --- HTTP API, health & metrics ---
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      httpapi.NewRouter(service, log, readiness...),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownTimeout := config.GetDuration(cfg.Server.ShutdownTimeout)
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if registry != nil {
		registry.Close()
	}
	if zeebeClient != nil {
		if err := zeebeClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Pipeline manager stopped gracefully")
}
