package cli

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/config"
)

type Config struct {
	// Application flags
	Debug bool

	// Configuration flags
	ConfigPath string

	// Overrides for the configuration file; empty keeps the file's value
	ListenAddress   string
	PublicDir       string
	ShutdownTimeout string

	EnableHTTP2   bool
	EnableMetrics bool
	DisableAudit  bool
}

// Parse reads flags from args into a Config. Defaults come from the
// environment so that container deployments need no arguments.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	// The pattern: fs.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
	fs.BoolVar(&cfg.Debug, "debug", getEnvBool("BULKMAIL_DEBUG", false), "Enable debug level logging")

	fs.StringVar(&cfg.ConfigPath, "config-path", getEnvString("BULKMAIL_CONFIG_PATH", config.DefaultPath),
		"Path to the bulkmail configuration file")
	fs.StringVar(&cfg.ListenAddress, "listen-address", getEnvString("BULKMAIL_LISTEN_ADDRESS", ""),
		"Address the HTTP server binds to (overrides server.listenAddress)")
	fs.StringVar(&cfg.PublicDir, "public-dir", getEnvString("BULKMAIL_PUBLIC_DIR", ""),
		"Directory with the operator UI served at / (overrides server.publicDir)")
	fs.StringVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvString("BULKMAIL_SHUTDOWN_TIMEOUT", ""),
		"Grace period for in-flight batches on shutdown (e.g. '10s')")

	fs.BoolVar(&cfg.EnableHTTP2, "enable-http2", getEnvBool("BULKMAIL_ENABLE_HTTP2", false),
		"If set, HTTP/2 will be enabled for the TLS listener")
	fs.BoolVar(&cfg.EnableMetrics, "enable-metrics", getEnvBool("BULKMAIL_ENABLE_METRICS", true),
		"Expose Prometheus metrics on /metrics")
	fs.BoolVar(&cfg.DisableAudit, "disable-audit", getEnvBool("BULKMAIL_DISABLE_AUDIT", false),
		"Disable all audit sinks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply copies the non-empty overrides onto cfg.
func (c *Config) Apply(cfg *config.Config, log *zap.SugaredLogger) {
	if c.ListenAddress != "" {
		cfg.Server.ListenAddress = c.ListenAddress
	}
	if c.PublicDir != "" {
		cfg.Server.PublicDir = c.PublicDir
	}
	timeout, err := parseDuration("shutdown-timeout", c.ShutdownTimeout, cfg.Server.ShutdownTimeout)
	if err != nil {
		log.Warn(err)
	}
	cfg.Server.ShutdownTimeout = timeout
	if c.DisableAudit {
		cfg.Audit = config.Audit{}
	}
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"config_path", c.ConfigPath,
		"listen_address", c.ListenAddress,
		"public_dir", c.PublicDir,
		"shutdown_timeout", c.ShutdownTimeout,
		"enable_http2", c.EnableHTTP2,
		"enable_metrics", c.EnableMetrics,
		"disable_audit", c.DisableAudit,
	)
}

// DisableHTTP2 is used to configure TLS options to disable HTTP/2.
// This is important because HTTP/2 has known vulnerabilities (CVE-2023-44487, CVE-2024-3156).
func DisableHTTP2(c *tls.Config) {
	c.NextProtos = []string{"http/1.1"}
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			duration = d
		} else {
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
	}

	return duration, nil
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
