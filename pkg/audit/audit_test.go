package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/telekom/bulkmail/pkg/config"
	"github.com/telekom/bulkmail/pkg/metrics"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	closeErr error
	closed   int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return w.closeErr
}

type recordingSink struct {
	name   string
	err    error
	events []*Event
	closed bool
}

func (s *recordingSink) Write(_ context.Context, e *Event) error {
	s.events = append(s.events, e)
	return s.err
}
func (s *recordingSink) Close() error { s.closed = true; return nil }
func (s *recordingSink) Name() string { return s.name }

func dispatchedEvent() *Event {
	e := NewEvent(EventBatchDispatched, SeverityInfo)
	e.Actor = Actor{User: "ops@example.com", SourceIP: "10.0.0.1"}
	e.Target = Target{Kind: "smtp", Name: "smtp.example.com:587"}
	e.RequestContext = &RequestContext{CorrelationID: "run-1"}
	return e.WithDetail("sent", 2).WithDetail("failed", 1)
}

func TestNewEvent(t *testing.T) {
	a := NewEvent(EventBatchRejected, SeverityWarning)
	b := NewEvent(EventBatchRejected, SeverityWarning)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())
	assert.Nil(t, a.Details)

	a.WithDetail("reason", "missing sender")
	assert.Equal(t, "missing sender", a.Details["reason"])
}

func TestLogSinkWritesFlatFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))
	before := testutil.ToFloat64(metrics.AuditEventsWritten.WithLabelValues("log"))

	require.NoError(t, sink.Write(context.Background(), dispatchedEvent()))
	require.NoError(t, sink.Close())

	entries := logs.FilterMessage("Batch audit event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, "batch.dispatched", fields["event"])
	assert.Equal(t, "ops@example.com", fields["sender"])
	assert.Equal(t, "smtp.example.com:587", fields["relay"])
	assert.Equal(t, "10.0.0.1", fields["client_ip"])
	assert.Equal(t, "run-1", fields["request_id"])
	assert.EqualValues(t, 2, fields["sent"])
	assert.EqualValues(t, 1, fields["failed"])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuditEventsWritten.WithLabelValues("log")))
}

func TestLogSinkOmitsMissingContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Write(context.Background(), NewEvent(EventBatchRejected, SeverityWarning)))

	fields := logs.All()[0].ContextMap()
	assert.NotContains(t, fields, "client_ip")
	assert.NotContains(t, fields, "request_id")
}

func TestMultiSinkJoinsFailures(t *testing.T) {
	errKafka := errors.New("broker down")
	failing := &recordingSink{name: "kafka", err: errKafka}
	ok := &recordingSink{name: "log"}
	multi := NewMultiSink([]Sink{failing, ok}, zap.NewNop())
	before := testutil.ToFloat64(metrics.AuditEventsFailed.WithLabelValues("kafka"))

	err := multi.Write(context.Background(), dispatchedEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, errKafka)
	assert.Contains(t, err.Error(), "kafka: broker down")
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1, "a failing sink does not keep the event from the next one")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuditEventsFailed.WithLabelValues("kafka")))
	assert.Equal(t, 2, multi.Len())

	require.NoError(t, multi.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestKafkaSinkMessageShape(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink("bulkmail-audit", w, zap.NewNop())
	assert.Equal(t, "kafka", sink.Name())

	event := dispatchedEvent()
	require.NoError(t, sink.Write(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ops@example.com", string(msg.Key), "keyed by sender")
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{
		"event":      "batch.dispatched",
		"relay":      "smtp.example.com:587",
		"request-id": "run-1",
	}, headers)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, EventBatchDispatched, decoded.Type)
}

func TestKafkaSinkWriteFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		level   zapcore.Level
		message string
	}{
		{
			name:    "broker unreachable",
			err:     &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			level:   zapcore.WarnLevel,
			message: "Kafka unavailable, audit event not published",
		},
		{
			name:    "leader election in progress",
			err:     kafka.LeaderNotAvailable,
			level:   zapcore.WarnLevel,
			message: "Kafka unavailable, audit event not published",
		},
		{
			name:    "topic does not exist",
			err:     kafka.UnknownTopicOrPartition,
			level:   zapcore.WarnLevel,
			message: "Kafka unavailable, audit event not published",
		},
		{
			name:    "not authorized",
			err:     kafka.TopicAuthorizationFailed,
			level:   zapcore.ErrorLevel,
			message: "Kafka rejected audit event",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			sink := newKafkaSink("bulkmail-audit", &fakeWriter{err: tt.err}, zap.New(core))

			err := sink.Write(context.Background(), dispatchedEvent())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "bulkmail-audit")

			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.level, logs.All()[0].Level)
			assert.Equal(t, tt.message, logs.All()[0].Message)
		})
	}
}

func TestKafkaSinkClose(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink("bulkmail-audit", w, zap.NewNop())

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.Equal(t, 1, w.closed)

	err := sink.Write(context.Background(), dispatchedEvent())
	assert.ErrorIs(t, err, errSinkClosed)
	assert.Empty(t, w.msgs)
}

func TestKafkaSinkAsyncCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := newKafkaSink("bulkmail-audit", &fakeWriter{}, zap.New(core))
	before := testutil.ToFloat64(metrics.AuditEventsFailed.WithLabelValues("kafka"))

	sink.onAsyncCompletion([]kafka.Message{{}, {}}, nil)
	assert.Equal(t, 0, logs.Len())

	sink.onAsyncCompletion([]kafka.Message{{}, {}}, errors.New("broker down"))
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.AuditEventsFailed.WithLabelValues("kafka")))
}

func TestNewKafkaSink(t *testing.T) {
	base := config.Kafka{Brokers: []string{"127.0.0.1:9092"}, Topic: "bulkmail-audit"}

	tests := []struct {
		name    string
		mutate  func(*config.Kafka)
		wantErr string
	}{
		{name: "plain", mutate: func(*config.Kafka) {}},
		{name: "async with compression", mutate: func(c *config.Kafka) { c.Async = true; c.Compression = "zstd" }},
		{name: "sasl scram", mutate: func(c *config.Kafka) {
			c.SASL = config.KafkaSASL{Mechanism: "scram-sha-512", Username: "u", Password: "p"}
		}},
		{name: "tls without CA", mutate: func(c *config.Kafka) { c.TLS = config.KafkaTLS{Enabled: true} }},
		{name: "no brokers", mutate: func(c *config.Kafka) { c.Brokers = nil }, wantErr: "needs brokers and a topic"},
		{name: "no topic", mutate: func(c *config.Kafka) { c.Topic = "" }, wantErr: "needs brokers and a topic"},
		{name: "unknown compression", mutate: func(c *config.Kafka) { c.Compression = "brotli" }, wantErr: `unsupported kafka compression "brotli"`},
		{name: "unknown sasl", mutate: func(c *config.Kafka) { c.SASL.Mechanism = "GSSAPI" }, wantErr: `unsupported SASL mechanism "GSSAPI"`},
		{name: "missing CA file", mutate: func(c *config.Kafka) {
			c.TLS = config.KafkaTLS{Enabled: true, CAFile: filepath.Join(t.TempDir(), "missing.pem")}
		}, wantErr: "reading kafka CA file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			sink, err := NewKafkaSink(cfg, zap.NewNop())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, sink.Close())
		})
	}
}

func TestBrokerTLS(t *testing.T) {
	cfg, err := brokerTLS(config.KafkaTLS{Enabled: true, InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Nil(t, cfg.RootCAs)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0o600))
	_, err = brokerTLS(config.KafkaTLS{Enabled: true, CAFile: bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no certificates")
}

func TestCompressionFor(t *testing.T) {
	for name, want := range map[string]kafka.Compression{
		"":       0,
		"none":   0,
		"GZIP":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	} {
		got, err := compressionFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
