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

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/contacts"
	"github.com/telekom/bulkmail/pkg/dispatch"
	"github.com/telekom/bulkmail/pkg/metrics"
	"github.com/telekom/bulkmail/pkg/report"
)

const tracerName = "github.com/telekom/bulkmail/pkg/pipeline"

// Status is the terminal state of a run.
type Status string

const (
	StatusCompleted        Status = "completed"
	StatusInvalid          Status = "invalid"
	StatusUnreachable      Status = "unreachable"
	StatusRemoteFailure    Status = "remote-failure"
	StatusTransportFailure Status = "transport-failure"
	StatusFailed           Status = "failed"
)

// Prober gates dispatch on backend availability.
type Prober interface {
	Probe(ctx context.Context) error
}

// Dispatcher submits a batch exactly once.
type Dispatcher interface {
	Send(ctx context.Context, req dispatch.BatchRequest) dispatch.Outcome
}

// Input is everything an operator supplies for one run.
type Input struct {
	Identity    string
	Secret      string
	Host        string
	Port        int
	Subject     string
	Body        string
	ContactsRaw string
}

// Report describes a finished run. Entries holds every status entry in the
// order it was emitted.
type Report struct {
	RunID      string            `json:"runId" yaml:"runId"`
	Status     Status            `json:"status" yaml:"status"`
	Contacts   int               `json:"contacts" yaml:"contacts"`
	Entries    []report.Entry    `json:"entries" yaml:"entries"`
	Counts     report.Counts     `json:"counts" yaml:"counts"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
	Err        error             `json:"-" yaml:"-"`
	Outcome    *dispatch.Outcome `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	StartedAt  time.Time         `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt" yaml:"finishedAt"`
}

// Succeeded reports whether the run reached the backend and got a 2xx reply.
func (r *Report) Succeeded() bool {
	return r.Status == StatusCompleted
}

type Orchestrator struct {
	prober     Prober
	dispatcher Dispatcher
	sink       report.Sink
	log        *zap.SugaredLogger
	now        func() time.Time
	state      SessionState
}

type Option func(*Orchestrator)

// WithSink streams entries to sink as each stage produces them.
func WithSink(sink report.Sink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = sink
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func New(prober Prober, dispatcher Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		prober:     prober,
		dispatcher: dispatcher,
		sink:       report.Discard,
		log:        zap.NewNop().Sugar(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Busy reports whether a run is in flight.
func (o *Orchestrator) Busy() bool {
	return o.state.Busy()
}

// run carries the mutable state of one Run call.
type run struct {
	o     *Orchestrator
	trail report.Trail
	rep   *Report
}

func (r *run) emit(entries ...report.Entry) {
	for _, e := range entries {
		r.trail.Emit(e)
		r.o.sink.Emit(e)
	}
}

func (r *run) fail(status Status, err error, entries ...report.Entry) {
	r.rep.Status = status
	r.rep.Err = err
	if err != nil {
		r.rep.Error = err.Error()
	}
	r.emit(entries...)
}

// Run executes one pipeline pass. The only error it returns is ErrBusy;
// every other failure is reported through the returned Report.
func (o *Orchestrator) Run(ctx context.Context, in Input) (rep *Report, err error) {
	if !o.state.acquire() {
		metrics.RunsRejectedBusy.Inc()
		return nil, ErrBusy
	}
	defer o.state.release()

	r := &run{o: o, rep: &Report{RunID: uuid.New().String(), StartedAt: o.now()}}
	log := o.log.With("runId", r.rep.RunID)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("bulkmail.run_id", r.rep.RunID)))
	ctx = dispatch.ContextWithRequestID(ctx, r.rep.RunID)

	defer func() {
		if p := recover(); p != nil {
			log.Errorw("Run panicked", "panic", p)
			r.fail(StatusFailed, fmt.Errorf("unexpected failure: %v", p),
				report.Errorf("System error: %v", p))
		}
		r.rep.FinishedAt = o.now()
		r.rep.Entries = r.trail.Entries()
		r.rep.Counts = report.Summarize(r.rep.Entries)

		span.SetAttributes(attribute.String("bulkmail.status", string(r.rep.Status)))
		if r.rep.Status != StatusCompleted {
			span.SetStatus(codes.Error, r.rep.Error)
		}
		span.End()

		metrics.RunsTotal.WithLabelValues(string(r.rep.Status)).Inc()
		metrics.RunDuration.Observe(r.rep.FinishedAt.Sub(r.rep.StartedAt).Seconds())
		log.Infow("Run finished", "status", r.rep.Status, "contacts", r.rep.Contacts)

		rep, err = r.rep, nil
	}()

	o.execute(ctx, r, in, log)
	return r.rep, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, in Input, log *zap.SugaredLogger) {
	if err := validate(in); err != nil {
		r.fail(StatusInvalid, err, report.Errorf("%s", err.Error()))
		return
	}
	parsed, err := contacts.Parse(in.ContactsRaw)
	if err != nil {
		r.fail(StatusInvalid, err, report.Errorf("%s", err.Error()))
		return
	}
	r.rep.Contacts = len(parsed)

	r.emit(report.Infof("Starting process..."))
	log.Infow("Starting run", "contacts", len(parsed))

	if err := o.probe(ctx); err != nil {
		log.Warnw("Backend not ready", "error", err)
		r.fail(StatusUnreachable, err,
			report.Errorf("Cannot connect to server. Is it running? Details: %v", causeOf(err)),
			report.Entry{Severity: report.Info, Text: report.UnreachableHint})
		return
	}
	r.emit(report.Infof("Server is ready. Sending %d contacts...", len(parsed)))

	req := dispatch.BatchRequest{
		SMTPConfig: dispatch.SMTPConfig{
			Email:    in.Identity,
			Password: in.Secret,
			Host:     in.Host,
			Port:     in.Port,
		},
		Template: dispatch.Template{Subject: in.Subject, Body: in.Body},
		Contacts: parsed,
	}
	outcome := o.send(ctx, req)
	r.rep.Outcome = &outcome

	switch outcome.Kind {
	case dispatch.Succeeded:
		r.rep.Status = StatusCompleted
		r.emit(report.Render(outcome)...)
	case dispatch.TransportFailure:
		r.fail(StatusTransportFailure, outcome.Err(), report.Render(outcome)...)
	default:
		r.fail(StatusRemoteFailure, outcome.Err(), report.Render(outcome)...)
	}
}

func (o *Orchestrator) probe(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "probe")
	defer span.End()
	if o.prober == nil {
		return fmt.Errorf("no readiness prober configured")
	}
	err := o.prober.Probe(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend not ready")
	}
	return err
}

func (o *Orchestrator) send(ctx context.Context, req dispatch.BatchRequest) dispatch.Outcome {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(attribute.Int("bulkmail.contacts", len(req.Contacts))))
	defer span.End()
	if o.dispatcher == nil {
		return dispatch.NewTransportFailure(fmt.Errorf("no dispatcher configured"))
	}
	outcome := o.dispatcher.Send(ctx, req)
	span.SetAttributes(attribute.String("bulkmail.outcome", string(outcome.Kind)))
	if outcome.Kind != dispatch.Succeeded {
		span.SetStatus(codes.Error, outcome.Message)
	}
	return outcome
}

func validate(in Input) error {
	required := []struct {
		name  string
		value string
	}{
		{"email", in.Identity},
		{"password", in.Secret},
		{"subject", in.Subject},
		{"body", in.Body},
		{"contacts", in.ContactsRaw},
	}
	for _, f := range required {
		if isBlank(f.value) {
			return &contacts.ValidationError{Reason: "missing required field: " + f.name}
		}
	}
	return nil
}
