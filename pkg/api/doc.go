// Package api implements the bulkmail backend HTTP server (Gin-based): the
// health and batch send endpoints, Prometheus metrics and the optional
// operator UI.
package api
