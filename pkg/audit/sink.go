/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/metrics"
)

// Sink receives the audit event of every batch request.
type Sink interface {
	Write(ctx context.Context, event *Event) error
	Close() error
	Name() string
}

// LogSink writes one line per event to the "audit" logger.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{log: logger.Named("audit")}
}

func (s *LogSink) Write(_ context.Context, event *Event) error {
	s.log.Info("Batch audit event", eventFields(event)...)
	metrics.AuditEventsWritten.WithLabelValues(s.Name()).Inc()
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }

// eventFields flattens an event. Details follow in key order so lines for the
// same event type line up.
func eventFields(e *Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event", string(e.Type)),
		zap.String("audit_id", e.ID),
		zap.String("severity", string(e.Severity)),
		zap.String("sender", e.Actor.User),
		zap.String("relay", e.Target.Name),
	}
	if e.Actor.SourceIP != "" {
		fields = append(fields, zap.String("client_ip", e.Actor.SourceIP))
	}
	if e.RequestContext != nil && e.RequestContext.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", e.RequestContext.CorrelationID))
	}
	for _, k := range slices.Sorted(maps.Keys(e.Details)) {
		fields = append(fields, zap.Any(k, e.Details[k]))
	}
	return fields
}

// MultiSink hands every event to each wrapped sink. A failing sink never keeps
// the event from the others.
type MultiSink struct {
	sinks []Sink
	log   *zap.Logger
}

func NewMultiSink(sinks []Sink, logger *zap.Logger) *MultiSink {
	return &MultiSink{sinks: sinks, log: logger}
}

// Write returns the failures of all sinks joined.
func (s *MultiSink) Write(ctx context.Context, event *Event) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, event); err != nil {
			s.log.Warn("Audit sink dropped event",
				zap.String("sink", sink.Name()),
				zap.String("audit_id", event.ID),
				zap.String("error", err.Error()))
			metrics.AuditEventsFailed.WithLabelValues(sink.Name()).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *MultiSink) Name() string { return "multi" }

// Len returns the number of wrapped sinks.
func (s *MultiSink) Len() int { return len(s.sinks) }
