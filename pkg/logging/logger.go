package logging

import (
	"io"
	"os"

	"github.com/ricqchet/webhook-receiver/pkg/signature"
	"github.com/sirupsen/logrus"
)

const serviceName = "ricqchet-webhook-receiver"

// LogLevel represents logging levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NewLogger creates and configures a new structured logger
func NewLogger(level LogLevel) *logrus.Logger {
	return newLogger(level, os.Stdout)
}

// NewDiscardLogger returns a logger that writes nowhere, for tests
func NewDiscardLogger() *logrus.Logger {
	return newLogger(LogLevelError, io.Discard)
}

func newLogger(level LogLevel, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	// Use JSON formatter for structured logging
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	logger.SetLevel(parseLogLevel(level))
	logger.AddHook(&defaultFieldsHook{fields: logrus.Fields{"service": serviceName}})

	return logger
}

// parseLogLevel converts string log level to logrus.Level
func parseLogLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// defaultFieldsHook stamps every entry with fixed fields
type defaultFieldsHook struct {
	fields logrus.Fields
}

func (h *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// LogStartup logs service startup information
func LogStartup(logger *logrus.Logger, version, port string) {
	logger.WithFields(logrus.Fields{
		"event":   "startup",
		"version": version,
		"port":    port,
	}).Info("Ricqchet webhook receiver starting")
}

// LogConfigurationLoaded logs successful configuration loading. Only the
// secret sources are logged, never their values.
func LogConfigurationLoaded(logger *logrus.Logger, configPath string, policy signature.Policy, rotating bool) {
	logger.WithFields(logrus.Fields{
		"event":           "configuration_loaded",
		"config_path":     configPath,
		"max_age":         policy.String(),
		"secret_rotation": rotating,
	}).Info("Configuration loaded successfully")
}

// LogShutdownInitiated logs when shutdown is initiated
func LogShutdownInitiated(logger *logrus.Logger, signal string) {
	logger.WithFields(logrus.Fields{
		"event":  "shutdown_initiated",
		"signal": signal,
	}).Warn("Shutdown initiated")
}

// LogShutdownComplete logs when shutdown completes
func LogShutdownComplete(logger *logrus.Logger, duration float64) {
	logger.WithFields(logrus.Fields{
		"event":            "shutdown_complete",
		"duration_seconds": duration,
	}).Info("Shutdown complete")
}

// LogRejection logs a rejected delivery with its kind and a secret-free
// description
func LogRejection(entry *logrus.Entry, err error) {
	entry.WithFields(logrus.Fields{
		"event": "delivery_rejected",
		"kind":  signature.KindOf(err).String(),
		"error": err.Error(),
	}).Warn("Webhook delivery rejected")
}

// LogError logs an error with context
func LogError(logger *logrus.Logger, err error, context string, fields map[string]interface{}) {
	logFields := logrus.Fields{
		"error":   err.Error(),
		"context": context,
	}

	// Merge additional fields
	for k, v := range fields {
		logFields[k] = v
	}

	logger.WithFields(logFields).Error("Error occurred")
}

// LogWithRequestID returns a logger with request ID field
func LogWithRequestID(logger *logrus.Logger, requestID string) *logrus.Entry {
	return logger.WithField("request_id", requestID)
}
