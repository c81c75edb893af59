package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentestate/outreach/internal/api/router"
	"github.com/agentestate/outreach/internal/app/bootstrap"
	"github.com/agentestate/outreach/internal/archive"
	"github.com/agentestate/outreach/internal/compliance"
	appconfig "github.com/agentestate/outreach/internal/config"
	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/http/handlers"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/internal/observability/metrics"
	"github.com/agentestate/outreach/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting outreach API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_queue", cfg.UseMemoryQueue,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, false)

	// Datastores. Without DATABASE_URL everything runs in memory, which is
	// enough for the API surface plus the in-process worker.
	var (
		leadsRepo leads.Repository
		states    conversation.StateStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		leadsRepo = leads.NewPostgresRepository(pool)

		sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open sql db", "error", err)
			os.Exit(1)
		}
		defer func() { _ = sqlDB.Close() }()
		states = bootstrap.BuildStateStore(sqlDB, redisClient, logger)
	} else {
		logger.Warn("no DATABASE_URL; using in-memory stores")
		leadsRepo = leads.NewInMemoryRepository()
		states = conversation.NewMemoryStateStore()
	}

	registry := prometheus.NewRegistry()
	outreachMetrics := metrics.NewOutreachMetrics(registry)

	var (
		svc  *conversation.Service
		runs conversation.RunRecorder
	)
	if cfg.UseMemoryQueue {
		// Single-process mode: the API enqueues to a channel and an embedded
		// worker drains it.
		queue := conversation.NewMemoryQueue(64)
		svc = conversation.NewService(queue, logger)

		gate, optOuts, err := bootstrap.BuildGate(cfg, redisClient, logger)
		if err != nil {
			logger.Error("failed to build compliance gate", "error", err)
			os.Exit(1)
		}
		llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
		if err != nil {
			logger.Error("failed to build llm client", "error", err)
			os.Exit(1)
		}
		defer closeLLM()

		var sesClient *sesv2.Client
		if cfg.UseSESFallback {
			sesClient = sesv2.NewFromConfig(awsCfg)
		}
		sms, email := bootstrap.BuildMessengers(cfg, sesClient, logger)
		cal := bootstrap.BuildCalendar(ctx, cfg, logger)
		runner := bootstrap.BuildRunner(cfg, gate, llm, cal, sms, email, logger)

		opts := []conversation.WorkerOption{
			conversation.WithWorkerCount(cfg.WorkerCount),
			conversation.WithMetrics(outreachMetrics),
		}
		if optOuts != nil {
			opts = append(opts, conversation.WithOptOutHandling(compliance.NewOptOutDetector(), optOuts))
		}
		if cfg.ArchiveBucket != "" {
			store := archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)
			opts = append(opts, conversation.WithTranscriptArchiver(store))
		}

		worker := conversation.NewWorker(runner, queue, states, leadsRepo, sms, email, logger, opts...)
		worker.Start(ctx)
		defer worker.Wait()
	} else {
		sqsClient := sqs.NewFromConfig(awsCfg)
		svc = conversation.NewService(conversation.NewSQSQueue(sqsClient, cfg.OutreachQueueURL), logger)
		runs = conversation.NewRunStore(dynamodb.NewFromConfig(awsCfg), cfg.RunsTable, logger)
	}

	admin := handlers.NewAdminOutreachHandler(leadsRepo, svc, states, runs, logger)
	routerCfg := &router.Config{
		Logger:         logger,
		TelnyxWebhooks: handlers.NewTelnyxWebhookHandler(leadsRepo, svc, cfg.TelnyxPublicKey, logger),
		TwilioWebhooks: handlers.NewTwilioWebhookHandler(leadsRepo, svc, cfg.TwilioAuthToken, cfg.PublicBaseURL, logger),
		EmailWebhooks:  handlers.NewInboundEmailHandler(leadsRepo, svc, logger),
		Admin:          admin,
		AdminJWTSecret: cfg.AdminJWTSecret,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WebhookRate:    10,
		WebhookBurst:   30,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
