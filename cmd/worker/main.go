package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"respondr/internal/awsutil"
	"respondr/internal/config"
	"respondr/internal/extract"
	"respondr/internal/httpserver"
	"respondr/internal/logging"
	"respondr/internal/observability"
	sqsqueue "respondr/internal/queue/sqs"
	"respondr/internal/storage"
	filestore "respondr/internal/storage/file"
	"respondr/internal/storage/memory"
	"respondr/internal/storage/pg"
	workerproc "respondr/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	fallback, err := filestore.New(cfg.FallbackStorePath)
	if err != nil {
		slog.Error("worker fallback store init failed", "err", err, "path", cfg.FallbackStorePath)
		os.Exit(1)
	}

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		slog.Error("invalid time zone", "err", err, "tz", cfg.TimeZone)
		os.Exit(1)
	}

	queueCheck := func(c context.Context) error {
		_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
			QueueUrl:       &cfg.SQSQueueURL,
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
		})
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()

	// the primary being down at startup is fine, the manager fails over; the
	// queue being unreachable is not
	if err := db.Ping(startupCtx); err != nil {
		slog.Warn("db not reachable at startup, storage will fail over", "err", err)
	}
	if err := queueCheck(startupCtx); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	store := storage.NewManager(pg.New(db), storage.ManagerOptions{
		Fallback:      fallback,
		NewEmergency:  func() storage.Backend { return memory.New() },
		ProbeInterval: time.Duration(cfg.StorageProbeInterval) * time.Second,
		OpAttempts:    cfg.StorageOpAttempts,
	})
	go store.Run(ctx)

	consumer := &sqsqueue.Consumer{
		SQS: sqsClient, QueueURL: cfg.SQSQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	// health server (liveness + readiness)
	healthMux := httpserver.New().Mux
	healthMux.HandleFunc("/healthz", httpserver.Healthz())
	healthMux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		func(c context.Context) error { return store.Ping(c) },
		queueCheck,
	))

	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpserver.Logging(healthMux),
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	// extraction engine: hosted model + limiter/breaker
	aiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		aiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	engine := &extract.Engine{
		Client:     openai.NewClientWithConfig(aiCfg),
		Model:      cfg.OpenAIModel,
		Vocab:      extract.NewVocabulary(cfg.VehicleUnits),
		MaxRetries: cfg.ExtractMaxRetries,
		Timeout:    time.Duration(cfg.ExtractTimeout) * time.Second,
		Limiter:    rate.NewLimiter(rate.Limit(cfg.ExtractRPSPerPod), cfg.ExtractBurst),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openai",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
	}

	processor := &workerproc.Processor{
		Store:     store,
		Extractor: engine,
		Location:  loc,
		Lookback:  cfg.ContinuityLookback,
	}

	// start polling
	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.SQSQueueURL)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, job sqsqueue.InboundJob) (err error) {
			start := time.Now()
			slog.Info("worker job start", "source_message_id", job.SourceMessageID)
			defer func() {
				if err != nil {
					slog.Info("worker job finish",
						"source_message_id", job.SourceMessageID,
						"status", "error",
						"duration", time.Since(start),
						"err", err,
					)
				} else {
					slog.Info("worker job finish",
						"source_message_id", job.SourceMessageID,
						"status", "ok",
						"duration", time.Since(start),
					)
				}
			}()
			err = processor.Process(ctx, job)
			return err
		})
	}()

	// shutdown wiring
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
}
