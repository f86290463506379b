package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ricqchet/webhook-receiver/internal/models"
	"github.com/ricqchet/webhook-receiver/pkg/auth"
	"github.com/ricqchet/webhook-receiver/pkg/config"
	"github.com/ricqchet/webhook-receiver/pkg/logging"
	"github.com/ricqchet/webhook-receiver/pkg/metrics"
	"github.com/ricqchet/webhook-receiver/pkg/queue"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP webhook server
type Server struct {
	config     *config.Config
	router     *mux.Router
	httpServer *http.Server
	auth       *auth.Authenticator
	queue      *queue.DeliveryQueue
	dedup      *queue.DeduplicationCache
	logger     *logrus.Logger
	ready      atomic.Bool

	// shuttingDown reports process shutdown, nil when not wired
	shuttingDown func() bool
}

// NewServer creates a new webhook server instance. dedup may be nil to
// disable duplicate suppression.
func NewServer(cfg *config.Config, authenticator *auth.Authenticator, q *queue.DeliveryQueue, dedup *queue.DeduplicationCache, logger *logrus.Logger) *Server {
	s := &Server{
		config: cfg,
		router: mux.NewRouter(),
		auth:   authenticator,
		queue:  q,
		dedup:  dedup,
		logger: logger,
	}

	s.setupRoutes()

	// Durations were checked by config.Validate
	readTimeout, _ := cfg.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := cfg.ParseDuration(cfg.Server.WriteTimeout)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s
}

// setupRoutes configures HTTP routes and middleware
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.requestSizeLimitMiddleware)

	// Webhook endpoint, signature verified before the handler runs
	s.router.Handle("/webhook", s.auth.Middleware(http.HandlerFunc(s.handleWebhook))).Methods(http.MethodPost)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReadiness).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port": s.config.Server.Port,
	}).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.ready.Store(false)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// SetReady sets the readiness status
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// SetShutdownCheck makes readiness fail once fn reports shutdown
func (s *Server) SetShutdownCheck(fn func() bool) {
	s.shuttingDown = fn
}

func (s *Server) isReady() bool {
	if !s.ready.Load() || s.queue.IsClosed() {
		return false
	}
	return s.shuttingDown == nil || !s.shuttingDown()
}

// handleWebhook queues an authenticated delivery for processing
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := logging.RequestIDFromContext(r.Context())

	result, ok := auth.ResultFromContext(r.Context())
	if !ok {
		// Only reachable if the route is wired without the auth middleware
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unauthenticated route"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body_read_error"})
		return
	}

	delivery := &models.Delivery{
		RequestID:   requestID,
		Timestamp:   result.Timestamp,
		Metadata:    result.Metadata,
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
		ReceivedAt:  time.Now(),
	}

	deliveryLogger := logging.LogWithRequestID(s.logger, requestID).
		WithFields(logrus.Fields(result.Metadata.Fields()))

	if s.dedup != nil && s.dedup.IsDuplicate(delivery) {
		metrics.RecordDelivery(string(models.DeliveryStatusDuplicate))
		deliveryLogger.Info("Duplicate delivery acknowledged")
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     string(models.DeliveryStatusDuplicate),
			"request_id": requestID,
		})
		return
	}

	if err := s.queue.Enqueue(r.Context(), delivery); err != nil {
		if s.dedup != nil {
			s.dedup.Forget(delivery)
		}
		metrics.RecordDelivery(string(models.DeliveryStatusQueueFull))
		deliveryLogger.WithError(err).Warn("Delivery not queued, asking sender to redeliver")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": string(models.DeliveryStatusQueueFull)})
		return
	}

	metrics.RecordDelivery(string(models.DeliveryStatusAccepted))
	deliveryLogger.Debug("Delivery accepted")

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     string(models.DeliveryStatusAccepted),
		"request_id": requestID,
	})
}

// handleHealth returns the health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReadiness returns the readiness status
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	if !s.isReady() {
		status, code = "not ready", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"queue_depth":    s.queue.Depth(),
		"queue_capacity": s.queue.Capacity(),
	})
}

// requestIDMiddleware propagates or assigns a request id
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(logging.HeaderRequestID)
		if requestID == "" {
			requestID = logging.NewRequestID()
		}

		w.Header().Set(logging.HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), requestID)))
	})
}

// loggingMiddleware logs all HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"request_id":  logging.RequestIDFromContext(r.Context()),
			"status_code": rw.statusCode,
			"duration_ms": duration.Milliseconds(),
		}).Info("HTTP request")
	})
}

// requestSizeLimitMiddleware enforces maximum request size
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Server.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
