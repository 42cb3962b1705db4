// Package logging provides structured logging for the Alice bridge.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("subscribed", "topic", "alice/#")
//	logger.Error("skill callback failed", "error", err)
//
// # Security
//
// Never log skill tokens, JWT secrets, passwords or access tokens.
package logging
