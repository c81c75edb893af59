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
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentestate/outreach/internal/app/bootstrap"
	"github.com/agentestate/outreach/internal/archive"
	"github.com/agentestate/outreach/internal/compliance"
	appconfig "github.com/agentestate/outreach/internal/config"
	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/internal/observability/metrics"
	"github.com/agentestate/outreach/pkg/logging"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting outreach worker", "env", cfg.Env, "workers", cfg.WorkerCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.OutreachQueueURL == "" {
		logger.Error("OUTREACH_QUEUE_URL is required")
		os.Exit(1)
	}

	awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	leadsRepo := leads.NewPostgresRepository(pool)

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()
	states := bootstrap.BuildStateStore(sqlDB, redisClient, logger)

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

	registry := prometheus.NewRegistry()
	outreachMetrics := metrics.NewOutreachMetrics(registry)

	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.OutreachQueueURL)
	runStore := conversation.NewRunStore(dynamodb.NewFromConfig(awsCfg), cfg.RunsTable, logger)

	opts := []conversation.WorkerOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithRunRecorder(runStore),
		conversation.WithMetrics(outreachMetrics),
	}
	if optOuts != nil {
		opts = append(opts, conversation.WithOptOutHandling(compliance.NewOptOutDetector(), optOuts))
	}
	if cfg.ArchiveBucket != "" {
		store := archive.NewStore(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)
		opts = append(opts, conversation.WithTranscriptArchiver(store))
		logger.Info("transcript archival enabled", "bucket", cfg.ArchiveBucket)
	}

	worker := conversation.NewWorker(runner, queue, states, leadsRepo, sms, email, logger, opts...)
	worker.Start(ctx)

	// Health and metrics for the orchestrator.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down outreach worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = srv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
		logger.Info("worker drained")
	case <-doneCtx.Done():
		logger.Warn("worker shutdown timed out")
	}
}
