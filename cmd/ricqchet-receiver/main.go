package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ricqchet/webhook-receiver/internal/models"
	"github.com/ricqchet/webhook-receiver/pkg/auth"
	"github.com/ricqchet/webhook-receiver/pkg/config"
	"github.com/ricqchet/webhook-receiver/pkg/logging"
	"github.com/ricqchet/webhook-receiver/pkg/queue"
	"github.com/ricqchet/webhook-receiver/pkg/shutdown"
	"github.com/ricqchet/webhook-receiver/pkg/webhook"
	"github.com/sirupsen/logrus"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const statsInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ricqchet-receiver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env := config.LoadFromEnv()

	cfg, secrets, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))
	logging.LogStartup(logger, version, strconv.Itoa(cfg.Server.Port))

	policy, err := cfg.VerificationPolicy()
	if err != nil {
		logging.LogError(logger, err, "verification_policy", nil)
		return err
	}
	logging.LogConfigurationLoaded(logger, env.ConfigFile, policy, len(secrets.Next) > 0)

	logger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"port":        cfg.Server.Port,
		"max_workers": cfg.Queue.Workers,
		"queue_size":  cfg.Queue.BufferSize,
		"max_body":    cfg.Server.MaxRequestSize,
	}).Info("Configuration loaded")

	// Durations were checked by config.Validate
	dedupTTL, _ := cfg.ParseDuration(cfg.Queue.DedupTTL)
	shutdownTimeout, _ := cfg.ParseDuration(cfg.Server.ShutdownTimeout)

	authenticator, err := auth.NewAuthenticator(secrets, policy, cfg.Server.MaxRequestSize, logger)
	if err != nil {
		logging.LogError(logger, err, "authenticator", map[string]interface{}{
			"secret_rotation": len(secrets.Next) > 0,
		})
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	deliveryQueue := queue.NewDeliveryQueue(cfg.Queue.BufferSize, logger)
	dedup := queue.NewDeduplicationCache(dedupTTL, logger)
	workerPool := queue.NewWorkerPool(deliveryQueue, cfg.Queue.Workers, logDeliveryHandler(logger), queue.DefaultRetryConfig(), logger)
	webhookServer := webhook.NewServer(cfg, authenticator, deliveryQueue, dedup, logger)

	// Server first so nothing is enqueued after the queue closes
	coordinator := shutdown.NewShutdownCoordinator(logger)
	coordinator.SetStopAcceptingRequests(webhookServer.Shutdown)
	coordinator.SetCloseQueue(deliveryQueue.Close)
	coordinator.SetStopWorkerPool(func(ctx context.Context) error {
		return workerPool.Stop(remaining(ctx, shutdownTimeout))
	})
	coordinator.SetCleanupResources(dedup.Stop)

	shutdownManager := shutdown.NewManager(shutdownTimeout, logger)
	shutdownManager.RegisterHandler("receiver", shutdown.GracefulShutdownHandler(coordinator))
	webhookServer.SetShutdownCheck(shutdownManager.IsShuttingDown)

	workerPool.Start()
	logger.Info("Worker pool started")

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	go queue.ReportStats(statsCtx, statsInterval, logger, deliveryQueue, workerPool, dedup)

	webhookServer.SetReady(true)

	serverErr := make(chan error, 1)
	go func() {
		if err := webhookServer.Start(); err != nil {
			serverErr <- err
		}
	}()

	cause := shutdownManager.WaitForShutdown(serverErr)
	logging.LogShutdownInitiated(logger, cause)

	stopStats()

	start := time.Now()
	if err := shutdownManager.Shutdown(); err != nil {
		logging.LogError(logger, err, "shutdown", nil)
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	queue.LogStats(logger, deliveryQueue, workerPool, dedup)
	logging.LogShutdownComplete(logger, time.Since(start).Seconds())

	return nil
}

// logDeliveryHandler acknowledges verified deliveries in the log. Replace it
// with the application's own handler to act on payloads.
func logDeliveryHandler(logger *logrus.Logger) queue.DeliveryHandler {
	return func(ctx context.Context, d *models.Delivery) error {
		logger.WithFields(logrus.Fields(d.Metadata.Fields())).WithFields(logrus.Fields{
			"request_id":   d.RequestID,
			"signed_at":    d.Timestamp,
			"content_type": d.ContentType,
			"size":         len(d.Body),
			"queued_ms":    time.Since(d.QueuedAt).Milliseconds(),
		}).Info("Delivery processed")
		return nil
	}
}

// remaining returns the time left before ctx's deadline, or fallback
func remaining(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
