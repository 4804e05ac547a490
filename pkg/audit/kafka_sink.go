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
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/config"
	"github.com/telekom/bulkmail/pkg/metrics"
)

const (
	// one event per request; a larger batch would hold synchronous writes
	// until the flush interval
	kafkaBatchSize     = 1
	kafkaFlushInterval = 10 * time.Millisecond
	kafkaWriteTimeout  = 5 * time.Second

	headerEvent     = "event"
	headerRelay     = "relay"
	headerRequestID = "request-id"
)

var errSinkClosed = errors.New("kafka audit sink is closed")

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON keyed by sender, so the events of one
// sender stay ordered within a partition.
type KafkaSink struct {
	topic  string
	writer messageWriter
	log    *zap.Logger
	closed atomic.Bool
}

// NewKafkaSink builds the writer for the audit.kafka section of the backend config.
func NewKafkaSink(cfg config.Kafka, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka audit sink needs brokers and a topic")
	}
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	compression, err := compressionFor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	sink := newKafkaSink(cfg.Topic, nil, logger)
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    kafkaBatchSize,
		BatchTimeout: kafkaFlushInterval,
		WriteTimeout: kafkaWriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        cfg.Async,
		Compression:  compression,
		Transport:    transport,
	}
	if cfg.Async {
		w.Completion = sink.onAsyncCompletion
	}
	sink.writer = w

	sink.log.Info("Publishing audit events to Kafka",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("async", cfg.Async),
		zap.Bool("tls", cfg.TLS.Enabled),
		zap.String("sasl", cfg.SASL.Mechanism))
	return sink, nil
}

func newKafkaSink(topic string, writer messageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{topic: topic, writer: writer, log: logger.Named("audit.kafka")}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	if s.closed.Load() {
		return errSinkClosed
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event %s: %w", event.ID, err)
	}
	if err := s.writer.WriteMessages(ctx, eventMessage(event, value)); err != nil {
		fields := []zap.Field{
			zap.String("audit_id", event.ID),
			zap.String("event", string(event.Type)),
			zap.String("error", err.Error()),
		}
		if transient(err) {
			s.log.Warn("Kafka unavailable, audit event not published", fields...)
		} else {
			s.log.Error("Kafka rejected audit event", fields...)
		}
		return fmt.Errorf("publishing audit event %s to %s: %w", event.ID, s.topic, err)
	}
	metrics.AuditEventsWritten.WithLabelValues(s.Name()).Inc()
	return nil
}

// Close flushes pending async messages. Closing twice is a no-op.
func (s *KafkaSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}

// onAsyncCompletion reports failures that WriteMessages cannot return in async mode.
func (s *KafkaSink) onAsyncCompletion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	metrics.AuditEventsFailed.WithLabelValues(s.Name()).Add(float64(len(msgs)))
	s.log.Warn("Async audit publish failed", zap.Int("events", len(msgs)), zap.String("error", err.Error()))
}

func eventMessage(e *Event, value []byte) kafka.Message {
	headers := []kafka.Header{
		{Key: headerEvent, Value: []byte(e.Type)},
		{Key: headerRelay, Value: []byte(e.Target.Name)},
	}
	if e.RequestContext != nil && e.RequestContext.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: headerRequestID, Value: []byte(e.RequestContext.CorrelationID)})
	}
	return kafka.Message{Key: []byte(e.Actor.User), Value: value, Headers: headers}
}

// transient reports whether the same write could succeed later without a
// configuration change.
func transient(err error) bool {
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr)
}

func compressionFor(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("unsupported kafka compression %q", name)
}

func newTransport(cfg config.Kafka) (*kafka.Transport, error) {
	t := &kafka.Transport{}
	if cfg.TLS.Enabled {
		tlsCfg, err := brokerTLS(cfg.TLS)
		if err != nil {
			return nil, err
		}
		t.TLS = tlsCfg
	}
	if cfg.SASL.Mechanism != "" {
		m, err := saslMechanism(cfg.SASL)
		if err != nil {
			return nil, err
		}
		t.SASL = m
	}
	return t, nil
}

func brokerTLS(c config.KafkaTLS) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify, //nolint:gosec // opt-in via config
	}
	if c.CAFile == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("reading kafka CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in kafka CA file %s", c.CAFile)
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

func saslMechanism(c config.KafkaSASL) (sasl.Mechanism, error) {
	switch strings.ToUpper(c.Mechanism) {
	case "PLAIN":
		return plain.Mechanism{Username: c.Username, Password: c.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, c.Username, c.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, c.Username, c.Password)
	}
	return nil, fmt.Errorf("unsupported SASL mechanism %q", c.Mechanism)
}
