// Package observability provides logging, metrics, and context helpers for
// the research report service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for threads, steps, collaborators, and streams
//   - Context helpers for propagating request and thread ids
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Scope a logger to one step execution:
//
//	logger = observability.WithStepContext(logger, threadID, "Write", revision)
//
// Kafka writers log through zerolog via KafkaLoggers.
//
// # Metrics
//
// Metrics are registered with the default registry and served by the
// separate metrics listener:
//
//	metrics := observability.NewMetrics("research_report")
//	metrics.RecordStep("Plan", elapsed.Seconds())
//
// All Record methods tolerate a nil receiver so components can run without
// metrics in tests.
package observability
