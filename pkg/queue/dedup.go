package queue

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ricqchet/webhook-receiver/internal/models"
	"github.com/ricqchet/webhook-receiver/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultDedupTTL is used when a non-positive TTL is given
const DefaultDedupTTL = 10 * time.Minute

// DeduplicationCache drops repeated deliveries of the same message within a
// time window. The sender redelivers on timeouts and 5xx answers, so the
// same message can arrive more than once with a fresh valid signature.
type DeduplicationCache struct {
	cache     map[string]time.Time
	ttl       time.Duration
	mu        sync.Mutex
	logger    *logrus.Logger
	stopChan  chan struct{}
	stopped   bool
	hitCount  int64
	missCount int64
}

// NewDeduplicationCache creates a new deduplication cache
func NewDeduplicationCache(ttl time.Duration, logger *logrus.Logger) *DeduplicationCache {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}

	cache := &DeduplicationCache{
		cache:    make(map[string]time.Time),
		ttl:      ttl,
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// IsDuplicate reports whether the delivery was seen within the TTL window
// and marks it as seen otherwise
func (dc *DeduplicationCache) IsDuplicate(d *models.Delivery) bool {
	key := dc.generateKey(d)

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if lastSeen, exists := dc.cache[key]; exists && time.Since(lastSeen) < dc.ttl {
		dc.hitCount++
		metrics.RecordDedupHit()
		dc.logger.WithFields(logrus.Fields{
			"message_id": d.MessageID(),
			"request_id": d.RequestID,
			"key":        key,
			"age":        time.Since(lastSeen),
		}).Debug("Duplicate delivery detected")
		return true
	}

	dc.cache[key] = time.Now()
	dc.missCount++
	return false
}

// Forget removes a delivery so a redelivery is processed again, used when
// the delivery could not be queued
func (dc *DeduplicationCache) Forget(d *models.Delivery) {
	key := dc.generateKey(d)

	dc.mu.Lock()
	delete(dc.cache, key)
	dc.mu.Unlock()
}

// generateKey prefers the message id; without one it hashes the signed
// timestamp and body, which identifies an exact redelivery
func (dc *DeduplicationCache) generateKey(d *models.Delivery) string {
	if id := d.MessageID(); id != "" {
		return fmt.Sprintf("message:%s", id)
	}

	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(d.Timestamp, 10)))
	h.Write([]byte{'.'})
	h.Write(d.Body)
	return fmt.Sprintf("body:%x", h.Sum(nil)[:16])
}

// cleanupLoop periodically removes expired entries from the cache
func (dc *DeduplicationCache) cleanupLoop() {
	ticker := time.NewTicker(dc.ttl / 2) // Cleanup at half the TTL interval
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			dc.cleanup()
		case <-dc.stopChan:
			return
		}
	}
}

// cleanup removes expired entries from the cache
func (dc *DeduplicationCache) cleanup() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	now := time.Now()
	expired := 0

	for key, lastSeen := range dc.cache {
		if now.Sub(lastSeen) > dc.ttl {
			delete(dc.cache, key)
			expired++
		}
	}

	if expired > 0 {
		dc.logger.WithFields(logrus.Fields{
			"expired":   expired,
			"remaining": len(dc.cache),
		}).Debug("Deduplication cache cleanup")
	}
}

// Stop stops the cleanup goroutine
func (dc *DeduplicationCache) Stop() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if !dc.stopped {
		dc.stopped = true
		close(dc.stopChan)
		dc.logger.Info("Deduplication cache stopped")
	}
}

// Stats returns cache statistics
func (dc *DeduplicationCache) Stats() DedupStats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	total := dc.hitCount + dc.missCount
	var hitRate float64
	if total > 0 {
		hitRate = float64(dc.hitCount) / float64(total) * 100
	}

	return DedupStats{
		Size:    len(dc.cache),
		Hits:    dc.hitCount,
		Misses:  dc.missCount,
		HitRate: hitRate,
		TTL:     dc.ttl,
	}
}

// DedupStats represents deduplication cache statistics
type DedupStats struct {
	Size    int
	Hits    int64
	Misses  int64
	HitRate float64 // Percentage
	TTL     time.Duration
}
