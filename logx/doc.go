// Package logx provides leveled logging configured from environment variables,
// with printf-style helpers and structured fields.
//
// Environment Variables (each also read as WAGATE_LOG_*, which wins):
//   - LOG_LEVEL: minimum level (TRACE, DEBUG, INFO, WARN, ERROR, OFF)
//   - LOG_FORMAT: console or json (json by default under AWS Lambda)
//   - LOG_COLOR: colored level names in console output (default true)
//   - LOG_CALLER: file:line of the caller (default true)
//   - LOG_PREFIX: text placed before every line
//
// Basic Usage:
//
//	logx.Info("webhook server listening on %s", addr)
//
//	log := logx.With(logx.Fields{"connection": "main"})
//	log.Log(logx.ErrorLevel, "request failed", logx.Fields{"status": 503})
//
// Console lines look like
//
//	[2025-06-08 18:57:52] [ERROR] client.go:212: request failed connection=main status=503
//
// and JSON lines are written through zerolog:
//
//	{"level":"error","connection":"main","status":503,"time":"2025-06-08T18:57:52Z","message":"request failed"}
package logx
