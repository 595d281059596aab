// Ganymede is a single-process chat-pipeline runtime that sits between
// inbound chat requests and a text-generation backend.
//
// It provides:
//   - Per-caller rate limiting and strict-priority admission queueing
//   - Resilient model streaming with retry, backoff and cancellation
//   - Rolling metrics, threshold alerting and merged health reporting
//   - A SQLite archive of finished request traces with cron retention
//
// Usage:
//
//	# Start with default configuration
//	ganymede run
//
//	# Start with a custom configuration file
//	ganymede run --config /etc/ganymede/config.yaml
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
