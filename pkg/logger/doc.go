// Package logger provides a structured logging interface for the follow-back bot.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output
// - File output alongside the console
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "followback/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/followback.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Application started")
//	logger.WithField("login", "octocat").Info("New follower found")
//	logger.WithError(err).Error("Failed to follow user")
package logger
