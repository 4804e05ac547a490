// Package readiness gates batch dispatch behind a bounded, fixed-delay retry
// loop against the backend health endpoint.
package readiness
