package logger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// LogRequest logs HTTP request information at a level matching the status
func LogRequest(log Logger, method, url string, statusCode int, duration float64) {
	if log == nil {
		log = GetLogger()
	}

	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration,
	}

	if statusCode >= 200 && statusCode < 300 {
		log.InfoWithFields("HTTP request completed", fields)
	} else if statusCode >= 400 && statusCode < 500 {
		log.WarnWithFields("HTTP request client error", fields)
	} else if statusCode >= 500 {
		log.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogFollow logs follow operations
func LogFollow(log Logger, login string, success bool, err error) {
	if log == nil {
		log = GetLogger()
	}

	l := log.WithFields(map[string]interface{}{
		"login":   login,
		"success": success,
	})

	if err != nil {
		l.WithError(err).Error("Follow failed")
	} else if success {
		l.Info("Follow completed")
	} else {
		l.Warn("Follow skipped")
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(log Logger, endpoint string, retryAfter int) {
	if log == nil {
		log = GetLogger()
	}

	log.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogSyncProgress logs pipeline progress
func LogSyncProgress(log Logger, processed, total int) {
	if log == nil {
		log = GetLogger()
	}

	percentage := 0.0
	if total > 0 {
		percentage = float64(processed) / float64(total) * 100
	}

	log.WithFields(map[string]interface{}{
		"processed":  processed,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Sync progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	if log == nil {
		log = GetLogger()
	}

	l := log.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}

	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(log Logger, component string, reason string) {
	if log == nil {
		log = GetLogger()
	}

	log.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
