// Package telemetry provides observability instrumentation for cfacter.
//
// It integrates structured logging (zerolog) and metrics (Prometheus) for
// monitoring fact collection runs.
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.NewComponentLogger("facts")
//	logger = logger.WithRunID(runID).WithFact("memory")
//	logger.Warn("chunk dependency cycle detected")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Metrics
//
// Prometheus metrics on a private registry track resolution behavior:
//
//	metrics.RecordResolutionExecuted("networking")
//	metrics.RecordCacheHit()
//	metrics.RecordError("merge_conflict")
//
// The registry is never exposed over HTTP by the CLI; the --stats flag
// gathers it and prints a textual summary at the end of the run.
//
// Key metrics exposed:
//
//   - cfacter_resolutions_executed_total{resolver}
//   - cfacter_facts_resolved_total
//   - cfacter_facts_absent_total
//   - cfacter_cache_hits_total
//   - cfacter_environment_overrides_total
//   - cfacter_errors_by_class_total{class}
package telemetry
