// Package client implements the HTTP client bmctl uses to talk to the
// bulkmail backend: a single-attempt health check and the one-shot batch
// send whose response is interpreted tolerantly.
package client
