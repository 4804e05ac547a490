// Package pipeline sequences one bulk mail run: input validation, contact
// parsing, the readiness probe, the single batch dispatch and result
// rendering. At most one run is in flight per Orchestrator.
package pipeline
