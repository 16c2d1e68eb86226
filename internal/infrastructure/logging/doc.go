// Package logging provides structured logging for the access service and
// its client.
//
// It wraps log/slog so that every entry carries the service name and build
// version, and so components can derive scoped loggers:
//
//	logger := logging.New(cfg.Logging, version)
//	apiLog := logger.Component("api")
//	apiLog.Info("listening", "addr", addr)
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log passwords, bearer tokens or refresh tokens. Log user IDs and
// session family IDs instead.
package logging
