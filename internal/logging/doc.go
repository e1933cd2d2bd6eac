// Package logging provides structured logging for the esp32aq tools.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used by the bridge: per-device refresh outcomes, API requests and
// websocket subscribers.
//
// # Silent by Default
//
// The diagnostic CLI prints its own output, so logging stays disabled unless
// a level is passed to Initialize or ESP32AQ_LOG_LEVEL is set:
//
//	ESP32AQ_LOG_LEVEL=debug esp32aq 192.168.1.40
//
// The bridge can switch to JSON lines for log shippers:
//
//	logging.Configure(logging.Options{Level: "info", Encoding: logging.EncodingJSON})
//
// # Components
//
// Long-lived components take a named child logger:
//
//	log := logging.Named("scheduler")
//	log.Info("Job added", zap.String("key", key))
//
// # Thread Safety
//
// All logging functions are safe for concurrent use, including while
// Configure swaps the logger.
package logging
