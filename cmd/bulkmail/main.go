package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/bulkmail/pkg/api"
	"github.com/telekom/bulkmail/pkg/audit"
	"github.com/telekom/bulkmail/pkg/cli"
	"github.com/telekom/bulkmail/pkg/config"
	"github.com/telekom/bulkmail/pkg/mail"
	"github.com/telekom/bulkmail/pkg/telemetry"
	"github.com/telekom/bulkmail/pkg/utils"
	"github.com/telekom/bulkmail/pkg/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fset := flag.NewFlagSet("bulkmail", flag.ContinueOnError)
	flags, err := cli.Parse(fset, args)
	if err != nil {
		return 2
	}

	zl := setupLogger(flags.Debug)
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()
	log.With("version", version.GetBuildInfo().String()).Info("Starting bulkmail backend")
	if flags.Debug {
		flags.Print(log)
	}

	cfg, err := config.Load(flags.ConfigPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warnw("Config file not found, using defaults", "path", flags.ConfigPath)
		cfg = config.Defaults()
	case err != nil:
		log.Errorw("Error loading config", "path", flags.ConfigPath, "error", err)
		return 1
	}
	flags.Apply(&cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry,
		telemetry.WithLogger(log), telemetry.WithVersion(version.Version))
	if err != nil {
		log.Errorw("Error initialising tracing", "error", err)
		return 1
	}

	sink, err := buildAuditSink(cfg.Audit, zl)
	if err != nil {
		log.Errorw("Error creating audit sink", "error", err)
		return 1
	}

	deliverer := mail.NewDeliverer(
		mail.WithRetry(utils.RetryConfig{
			MaxRetries:        cfg.SMTP.DialRetries,
			InitialBackoff:    cfg.SMTP.DialBackoff,
			MaxBackoff:        10 * cfg.SMTP.DialBackoff,
			BackoffMultiplier: 2.0,
		}),
		mail.WithSenderName(cfg.SMTP.SenderName),
		mail.WithInsecureSkipVerify(cfg.SMTP.InsecureSkipVerify),
		mail.WithLogger(log),
	)

	opts := []api.Option{api.WithHTTP2(flags.EnableHTTP2)}
	if sink != nil {
		opts = append(opts, api.WithAuditSink(sink))
	}
	server := api.NewServer(zl, cfg, flags.Debug, flags.EnableMetrics, deliverer, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen() }()

	code := 0
	select {
	case err := <-errCh:
		if err != nil {
			log.Errorw("Server stopped", "error", err)
			code = 1
		}
	case <-ctx.Done():
		log.Infow("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Graceful shutdown incomplete", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnw("Flushing traces failed", "error", err)
	}
	return code
}

// buildAuditSink returns nil when every sink is disabled.
func buildAuditSink(cfg config.Audit, logger *zap.Logger) (audit.Sink, error) {
	var sinks []audit.Sink
	if cfg.Log {
		sinks = append(sinks, audit.NewLogSink(logger))
	}
	if cfg.KafkaEnabled() {
		ks, err := audit.NewKafkaSink(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ks)
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	}
	return audit.NewMultiSink(sinks, logger), nil
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Stacktraces on WARN in development mode drown the batch logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
