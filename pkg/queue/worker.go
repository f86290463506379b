package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ricqchet/webhook-receiver/internal/models"
	"github.com/ricqchet/webhook-receiver/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// DeliveryHandler processes one verified delivery
type DeliveryHandler func(ctx context.Context, d *models.Delivery) error

// WorkerPool manages a pool of worker goroutines that process deliveries
type WorkerPool struct {
	queue          *DeliveryQueue
	workers        int
	handler        DeliveryHandler
	retry          RetryConfig
	handlerTimeout time.Duration
	logger         *logrus.Logger
	wg             sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
	stopOnce       sync.Once
	inFlight       int64 // atomic counter for in-flight deliveries
	processed      int64
	failed         int64
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queue *DeliveryQueue, workers int, handler DeliveryHandler, retry RetryConfig, logger *logrus.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:          queue,
		workers:        workers,
		handler:        handler,
		retry:          retry,
		handlerTimeout: 5 * time.Minute,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start starts all worker goroutines
func (wp *WorkerPool) Start() {
	wp.logger.WithFields(logrus.Fields{
		"workers":        wp.workers,
		"retry_backoffs": wp.retry.BackoffDurations(),
	}).Info("Starting worker pool")

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop gracefully stops the worker pool.
// Workers drain the queue once it is closed; Stop waits for them up to
// timeout and then cancels in-flight handlers.
func (wp *WorkerPool) Stop(timeout time.Duration) error {
	var stopErr error

	wp.stopOnce.Do(func() {
		wp.logger.Info("Stopping worker pool")

		done := make(chan struct{})
		go func() {
			wp.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			wp.logger.Info("All workers stopped gracefully")
		case <-time.After(timeout):
			wp.cancel()
			stopErr = fmt.Errorf("worker pool shutdown timeout after %v", timeout)
			wp.logger.Warn("Worker pool shutdown timeout, in-flight deliveries cancelled")
		}
		wp.cancel()
	})

	return stopErr
}

// worker is a goroutine that processes deliveries from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	workerLogger := wp.logger.WithField("worker_id", id)
	workerLogger.Debug("Worker started")

	for {
		d, err := wp.queue.Dequeue(wp.ctx)
		if err != nil {
			// Queue closed and drained, or pool cancelled
			workerLogger.WithError(err).Debug("Worker stopping")
			return
		}

		wp.processDelivery(workerLogger, d)
	}
}

// processDelivery runs the handler with retries and panic recovery
func (wp *WorkerPool) processDelivery(logger *logrus.Entry, d *models.Delivery) {
	atomic.AddInt64(&wp.inFlight, 1)
	defer atomic.AddInt64(&wp.inFlight, -1)

	deliveryLogger := logger.WithFields(logrus.Fields{
		"message_id": d.MessageID(),
		"request_id": d.RequestID,
	})
	deliveryLogger.Info("Processing delivery")

	start := time.Now()
	var err error
	for retries := 0; ; retries++ {
		err = wp.runHandler(d)
		if !wp.retry.ShouldRetry(retries, err) {
			break
		}

		backoff := wp.retry.Backoff(retries + 1)
		deliveryLogger.WithFields(logrus.Fields{
			"retry":   retries + 1,
			"backoff": backoff,
			"error":   err.Error(),
		}).Warn("Delivery handler failed, retrying")

		if sleepErr := sleepContext(wp.ctx, backoff); sleepErr != nil {
			break
		}
	}
	duration := time.Since(start)

	if err != nil {
		atomic.AddInt64(&wp.failed, 1)
		metrics.RecordDelivery(string(models.DeliveryStatusFailed))
		metrics.RecordProcessing(string(models.DeliveryStatusFailed), duration.Seconds())
		deliveryLogger.WithFields(logrus.Fields{
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		}).Error("Delivery processing failed")
		return
	}

	atomic.AddInt64(&wp.processed, 1)
	metrics.RecordDelivery(string(models.DeliveryStatusProcessed))
	metrics.RecordProcessing(string(models.DeliveryStatusProcessed), duration.Seconds())
	deliveryLogger.WithField("duration_ms", duration.Milliseconds()).Info("Delivery processing completed")
}

// runHandler calls the handler once, turning a panic into an error
func (wp *WorkerPool) runHandler(d *models.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("delivery handler panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(wp.ctx, wp.handlerTimeout)
	defer cancel()

	return wp.handler(ctx, d)
}

// Stats returns worker pool statistics
func (wp *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		Workers:    wp.workers,
		InFlight:   int(atomic.LoadInt64(&wp.inFlight)),
		QueueDepth: wp.queue.Depth(),
		Processed:  atomic.LoadInt64(&wp.processed),
		Failed:     atomic.LoadInt64(&wp.failed),
	}
}

// WorkerPoolStats represents worker pool statistics
type WorkerPoolStats struct {
	Workers    int
	InFlight   int
	QueueDepth int
	Processed  int64
	Failed     int64
}
