// Package audit records what the bulkmail backend did with each batch and
// forwards those events to configurable sinks (structured log, Kafka).
package audit
