package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager handles graceful shutdown coordination
type Manager struct {
	logger         *logrus.Logger
	shutdownChan   chan os.Signal
	handlers       []namedHandler
	timeout        time.Duration
	mu             sync.Mutex
	isShuttingDown bool
}

// ShutdownHandler is a function that performs cleanup during shutdown
type ShutdownHandler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   ShutdownHandler
}

// NewManager creates a new shutdown manager
func NewManager(timeout time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		logger:       logger,
		shutdownChan: make(chan os.Signal, 1),
		timeout:      timeout,
	}
}

// RegisterHandler adds a shutdown handler. Handlers run one after another in
// registration order, so components that feed others must be registered
// first.
func (m *Manager) RegisterHandler(name string, handler ShutdownHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = append(m.handlers, namedHandler{name: name, fn: handler})
}

// WaitForShutdown blocks until a shutdown signal is received or errCh
// yields an error, and returns a description of the cause
func (m *Manager) WaitForShutdown(errCh <-chan error) string {
	signal.Notify(m.shutdownChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(m.shutdownChan)

	select {
	case sig := <-m.shutdownChan:
		m.logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Warn("Shutdown signal received")
		return sig.String()
	case err := <-errCh:
		m.logger.WithError(err).Error("Server error occurred")
		return "server_error"
	}
}

// Shutdown executes all registered shutdown handlers within the timeout.
// Only the first call does any work.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShuttingDown {
		m.mu.Unlock()
		return nil
	}
	m.isShuttingDown = true
	handlers := append([]namedHandler(nil), m.handlers...)
	m.mu.Unlock()

	m.logger.Info("Starting graceful shutdown")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for _, h := range handlers {
		if err := m.run(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	duration := time.Since(start)
	if ctx.Err() == context.DeadlineExceeded {
		m.logger.WithFields(logrus.Fields{
			"timeout": m.timeout.Seconds(),
		}).Error("Shutdown timeout exceeded")
	}

	if len(errs) > 0 {
		m.logger.WithFields(logrus.Fields{
			"duration": duration.Seconds(),
			"errors":   len(errs),
		}).Warn("Shutdown completed with errors")
		return errors.Join(errs...)
	}

	m.logger.WithFields(logrus.Fields{
		"duration": duration.Seconds(),
	}).Info("Shutdown completed successfully")
	return nil
}

func (m *Manager) run(ctx context.Context, h namedHandler) error {
	m.logger.WithField("handler", h.name).Info("Executing shutdown handler")
	start := time.Now()

	err := h.fn(ctx)

	duration := time.Since(start)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"handler":  h.name,
			"duration": duration.Seconds(),
			"error":    err.Error(),
		}).Error("Shutdown handler failed")
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"handler":  h.name,
		"duration": duration.Seconds(),
	}).Info("Shutdown handler completed")
	return nil
}

// IsShuttingDown returns true if shutdown has been initiated
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isShuttingDown
}

// ShutdownCoordinator orders the shutdown of the receiver pipeline: stop
// taking deliveries, close the queue, let workers drain it, then release
// the rest
type ShutdownCoordinator struct {
	stopAcceptingRequests func(context.Context) error
	closeQueue            func()
	stopWorkerPool        func(context.Context) error
	cleanupResources      func()
	logger                *logrus.Logger
}

// NewShutdownCoordinator creates a new shutdown coordinator
func NewShutdownCoordinator(logger *logrus.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		logger: logger,
	}
}

// SetStopAcceptingRequests sets the function to stop accepting new requests
func (sc *ShutdownCoordinator) SetStopAcceptingRequests(fn func(context.Context) error) {
	sc.stopAcceptingRequests = fn
}

// SetCloseQueue sets the function to close the queue
func (sc *ShutdownCoordinator) SetCloseQueue(fn func()) {
	sc.closeQueue = fn
}

// SetStopWorkerPool sets the function to stop the worker pool
func (sc *ShutdownCoordinator) SetStopWorkerPool(fn func(context.Context) error) {
	sc.stopWorkerPool = fn
}

// SetCleanupResources sets the function to cleanup resources
func (sc *ShutdownCoordinator) SetCleanupResources(fn func()) {
	sc.cleanupResources = fn
}

// ExecuteShutdown performs the coordinated shutdown sequence
func (sc *ShutdownCoordinator) ExecuteShutdown(ctx context.Context) error {
	sc.logger.Info("Executing coordinated shutdown")
	var errs []error

	// Step 1: Stop accepting new deliveries
	if sc.stopAcceptingRequests != nil {
		sc.logger.Info("Stopping acceptance of new webhooks")
		if err := sc.stopAcceptingRequests(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	// Step 2: Close the queue so workers exit once it is empty
	if sc.closeQueue != nil {
		sc.logger.Info("Closing delivery queue")
		sc.closeQueue()
	}

	// Step 3: Wait for workers to drain the queue
	if sc.stopWorkerPool != nil {
		sc.logger.Info("Waiting for queued deliveries to be processed")
		if err := sc.stopWorkerPool(ctx); err != nil {
			sc.logger.WithError(err).Warn("Worker pool shutdown had errors")
			errs = append(errs, err)
		}
	}

	// Step 4: Cleanup resources
	if sc.cleanupResources != nil {
		sc.logger.Info("Cleaning up resources")
		sc.cleanupResources()
	}

	sc.logger.Info("Coordinated shutdown complete")
	return errors.Join(errs...)
}

// GracefulShutdownHandler creates a shutdown handler from a coordinator
func GracefulShutdownHandler(coordinator *ShutdownCoordinator) ShutdownHandler {
	return func(ctx context.Context) error {
		return coordinator.ExecuteShutdown(ctx)
	}
}
