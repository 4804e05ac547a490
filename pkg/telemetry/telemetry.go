// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/config"
)

const (
	ServiceName = "bulkmail"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"

	flushTimeout = 5 * time.Second
)

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(ctx context.Context) error

type settings struct {
	log     *zap.SugaredLogger
	version string
	stdout  io.Writer
}

type Option func(*settings)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *settings) { s.log = log }
}

// WithVersion sets service.version on every span.
func WithVersion(version string) Option {
	return func(s *settings) { s.version = version }
}

// WithStdoutWriter redirects the stdout exporter.
func WithStdoutWriter(w io.Writer) Option {
	return func(s *settings) { s.stdout = w }
}

// Init installs the global tracer provider and W3C propagators for the
// backend. With tracing disabled a no-op provider is installed and the
// returned ShutdownFunc does nothing.
func Init(ctx context.Context, cfg config.Telemetry, opts ...Option) (trace.TracerProvider, ShutdownFunc, error) {
	s := settings{log: zap.NewNop().Sugar(), stdout: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}

	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", s.version),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("building trace resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg, s.stdout)
	if err != nil {
		return nil, nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRate)),
	}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	// export failures surface as warnings, not on stderr
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		s.log.Warnw("Trace export failed", "error", err)
	}))

	s.log.Infow("Tracing enabled", "exporter", exporterName(cfg), "endpoint", cfg.Endpoint, "samplingRate", cfg.SamplingRate)

	return tp, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func exporterName(cfg config.Telemetry) string {
	if cfg.Exporter == "" {
		return ExporterOTLP
	}
	return cfg.Exporter
}

// newExporter returns nil for ExporterNone: spans are sampled and recorded
// but never leave the process.
func newExporter(ctx context.Context, cfg config.Telemetry, stdout io.Writer) (sdktrace.SpanExporter, error) {
	switch exporterName(cfg) {
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP exporter: %w", err)
		}
		return exp, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stdout))
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		return exp, nil
	case ExporterNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

// sampler follows the caller's sampling decision and samples new traces at rate.
func sampler(rate float64) sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}
