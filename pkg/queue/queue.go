package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ricqchet/webhook-receiver/internal/models"
	"github.com/ricqchet/webhook-receiver/pkg/metrics"
	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// DeliveryQueue is an in-memory queue of verified deliveries
type DeliveryQueue struct {
	queue    chan *models.Delivery
	capacity int
	depth    int64 // atomic counter for current queue depth
	logger   *logrus.Logger
	mu       sync.RWMutex
	closed   bool
}

// NewDeliveryQueue creates a new delivery queue with the specified capacity
func NewDeliveryQueue(capacity int, logger *logrus.Logger) *DeliveryQueue {
	return &DeliveryQueue{
		queue:    make(chan *models.Delivery, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Enqueue adds a delivery to the queue without blocking.
// Returns ErrQueueFull or ErrQueueClosed when it cannot.
func (q *DeliveryQueue) Enqueue(ctx context.Context, d *models.Delivery) error {
	// Hold the read lock so Close cannot close the channel mid-send
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	d.QueuedAt = time.Now()

	select {
	case q.queue <- d:
		depth := atomic.AddInt64(&q.depth, 1)
		metrics.SetQueueDepth(int(depth))
		q.logger.WithFields(logrus.Fields{
			"message_id":  d.MessageID(),
			"request_id":  d.RequestID,
			"queue_depth": depth,
		}).Debug("Delivery enqueued")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue cancelled: %w", ctx.Err())
	default:
		return fmt.Errorf("%w (capacity: %d)", ErrQueueFull, q.capacity)
	}
}

// Dequeue removes and returns a delivery from the queue (FIFO)
// Blocks until a delivery is available or context is cancelled
func (q *DeliveryQueue) Dequeue(ctx context.Context) (*models.Delivery, error) {
	select {
	case d, ok := <-q.queue:
		if !ok {
			return nil, ErrQueueClosed
		}
		depth := atomic.AddInt64(&q.depth, -1)
		metrics.SetQueueDepth(int(depth))
		return d, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue cancelled: %w", ctx.Err())
	}
}

// Depth returns the current number of items in the queue
func (q *DeliveryQueue) Depth() int {
	return int(atomic.LoadInt64(&q.depth))
}

// Capacity returns the maximum capacity of the queue
func (q *DeliveryQueue) Capacity() int {
	return q.capacity
}

// Close closes the queue, preventing new enqueues
// Existing items remain in the queue for processing
func (q *DeliveryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.queue)
		q.logger.Info("Delivery queue closed")
	}
}

// IsClosed returns true if the queue has been closed
func (q *DeliveryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Stats returns queue statistics
func (q *DeliveryQueue) Stats() QueueStats {
	depth := q.Depth()
	return QueueStats{
		Depth:       depth,
		Capacity:    q.capacity,
		Utilization: float64(depth) / float64(q.capacity) * 100,
		IsFull:      depth >= q.capacity,
		IsEmpty:     depth == 0,
	}
}

// QueueStats represents queue statistics
type QueueStats struct {
	Depth       int
	Capacity    int
	Utilization float64 // Percentage (0-100)
	IsFull      bool
	IsEmpty     bool
}
