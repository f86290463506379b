package queue

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// LogStats writes one snapshot of queue, worker pool and dedup cache state
func LogStats(logger *logrus.Logger, q *DeliveryQueue, pool *WorkerPool, dedup *DeduplicationCache) {
	fields := logrus.Fields{"event": "delivery_stats"}

	if q != nil {
		qs := q.Stats()
		fields["queue_depth"] = qs.Depth
		fields["queue_capacity"] = qs.Capacity
		fields["queue_utilization"] = qs.Utilization
	}
	if pool != nil {
		ps := pool.Stats()
		fields["workers"] = ps.Workers
		fields["in_flight"] = ps.InFlight
		fields["processed"] = ps.Processed
		fields["failed"] = ps.Failed
	}
	if dedup != nil {
		ds := dedup.Stats()
		fields["dedup_size"] = ds.Size
		fields["dedup_hits"] = ds.Hits
		fields["dedup_hit_rate"] = ds.HitRate
	}

	logger.WithFields(fields).Info("Delivery pipeline stats")
}

// ReportStats calls LogStats every interval until ctx is done
func ReportStats(ctx context.Context, interval time.Duration, logger *logrus.Logger, q *DeliveryQueue, pool *WorkerPool, dedup *DeduplicationCache) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			LogStats(logger, q, pool, dedup)
		case <-ctx.Done():
			return
		}
	}
}
