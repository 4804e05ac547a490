// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventBatchDispatched is emitted once per batch after every contact was attempted.
	EventBatchDispatched EventType = "batch.dispatched"
	// EventBatchFailed is emitted when the SMTP session could not be used at all.
	EventBatchFailed EventType = "batch.failed"
	// EventBatchRejected is emitted when a request body could not be decoded.
	EventBatchRejected EventType = "batch.rejected"
)

// Severity represents the importance level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is a single audit record.
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	// Actor is the sender identity that submitted the batch
	Actor Actor `json:"actor"`

	// Target is the SMTP relay the batch went to
	Target Target `json:"target"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`

	RequestContext *RequestContext `json:"requestContext,omitempty"`
}

// Actor represents who triggered an audit event.
type Actor struct {
	User      string `json:"user"`
	SourceIP  string `json:"sourceIP,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Target represents what an audit event is about.
type Target struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// RequestContext carries correlation information for an event.
type RequestContext struct {
	// CorrelationID is the X-Request-ID of the originating request
	CorrelationID string `json:"correlationID,omitempty"`
	Path          string `json:"path,omitempty"`
}

// NewEvent returns an event with a fresh ID and the current timestamp.
func NewEvent(eventType EventType, severity Severity) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetail sets a detail key and returns the event for chaining.
func (e *Event) WithDetail(key string, value interface{}) *Event {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
