// Package report converts dispatch outcomes into the ordered, severity-tagged
// status trail shown to the operator.
package report
