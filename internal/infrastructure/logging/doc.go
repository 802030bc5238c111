// Package logging provides structured logging for the iT600 bridge.
//
// It wraps log/slog with JSON or text output, level filtering, and default
// service and version fields on every entry.
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
//	logger.Info("gateway configured", "host", cfg.Gateway.Host, "euid", logging.Redact(cfg.Gateway.EUID))
//
// Never log the full gateway EUID; it is the encryption key seed.
package logging
