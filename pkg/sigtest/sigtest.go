// Package sigtest provides helpers for testing code that receives signed
// Ricqchet deliveries.
package sigtest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ricqchet/webhook-receiver/internal/models"
	"github.com/ricqchet/webhook-receiver/pkg/signature"
)

// Options controls how NewSignedRequest builds a request
type Options struct {
	// Timestamp overrides the signing time, defaults to now
	Timestamp time.Time
	Metadata  signature.Metadata
	Target    string
}

// NewSignedRequest returns a POST request carrying body and a valid
// signature header for secret. It panics on an empty secret.
func NewSignedRequest(secret, body []byte, opts Options) *http.Request {
	signer, err := signature.NewSigner(secret)
	if err != nil {
		panic(err)
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	target := opts.Target
	if target == "" {
		target = "/webhook"
	}

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderSignature, signer.Sign(uint64(ts.Unix()), body))
	opts.Metadata.ApplyTo(req.Header)

	return req
}

// Deliver signs body, sends it to h and returns the recorded response
func Deliver(h http.Handler, secret, body []byte, opts Options) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, NewSignedRequest(secret, body, opts))
	return rec
}

// NewMetadata returns metadata with a random message id and the given
// attempt number
func NewMetadata(attempt int) signature.Metadata {
	id := uuid.NewString()
	return signature.Metadata{MessageID: &id, Attempt: &attempt}
}

// Redelivery returns a copy of m with the attempt counter incremented
func Redelivery(m signature.Metadata) signature.Metadata {
	next := 1
	if m.Attempt != nil {
		next = *m.Attempt + 1
	}
	out := m
	out.Attempt = &next
	return out
}

// Recorder is a delivery handler that remembers what it was given
type Recorder struct {
	mu         sync.Mutex
	deliveries []*models.Delivery
	err        error
	notify     chan struct{}
}

// NewRecorder creates a Recorder that accepts every delivery
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// FailWith makes subsequent calls to Handle return err
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Handle records d. It satisfies queue.DeliveryHandler.
func (r *Recorder) Handle(ctx context.Context, d *models.Delivery) error {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, d)
	err := r.err
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}

	return err
}

// Deliveries returns a snapshot of the recorded deliveries
func (r *Recorder) Deliveries() []*models.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Delivery(nil), r.deliveries...)
}

// Count returns the number of recorded deliveries
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

// WaitFor blocks until at least n deliveries were recorded or timeout
// elapses, and reports whether the count was reached
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if r.Count() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return r.Count() >= n
		}
	}
}
