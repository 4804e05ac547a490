package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/telekom/bulkmail/pkg/dispatch"
	"github.com/telekom/bulkmail/pkg/ratelimit"
)

// DefaultPath is read when no path is given.
const DefaultPath = "./config.yaml"

type Server struct {
	ListenAddress  string   `yaml:"listenAddress"`
	TLSCertFile    string   `yaml:"tlsCertFile"`
	TLSKeyFile     string   `yaml:"tlsKeyFile"`
	TrustedProxies []string `yaml:"trustedProxies"` // IPs/CIDRs to trust for X-Forwarded-For headers
	// PublicDir is an optional directory with the operator UI, served at /.
	PublicDir string `yaml:"publicDir"`
	// CORSOrigins are allowed cross-origin callers. Debug mode adds the local dev origins.
	CORSOrigins     []string      `yaml:"corsOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type SMTP struct {
	// DefaultHost and DefaultPort apply when a batch leaves them unset.
	DefaultHost        string `yaml:"defaultHost"`
	DefaultPort        int    `yaml:"defaultPort"`
	SenderName         string `yaml:"senderName"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	// DialRetries is how often a failed session setup is retried.
	DialRetries int           `yaml:"dialRetries"`
	DialBackoff time.Duration `yaml:"dialBackoff"`
}

type RateLimit struct {
	Enabled bool             `yaml:"enabled"`
	API     ratelimit.Config `yaml:"api"`
	Send    ratelimit.Config `yaml:"send"`
}

type KafkaTLS struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"caFile"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

type KafkaSASL struct {
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type Kafka struct {
	Brokers     []string  `yaml:"brokers"`
	Topic       string    `yaml:"topic"`
	Compression string    `yaml:"compression"`
	Async       bool      `yaml:"async"`
	TLS         KafkaTLS  `yaml:"tls"`
	SASL        KafkaSASL `yaml:"sasl"`
}

type Audit struct {
	// Log writes audit events to the structured log.
	Log   bool  `yaml:"log"`
	Kafka Kafka `yaml:"kafka"`
}

// KafkaEnabled reports whether a Kafka sink is configured.
func (a Audit) KafkaEnabled() bool {
	return len(a.Kafka.Brokers) > 0
}

type Telemetry struct {
	Enabled      bool              `yaml:"enabled"`
	Exporter     string            `yaml:"exporter"`
	Endpoint     string            `yaml:"endpoint"`
	Insecure     bool              `yaml:"insecure"`
	SamplingRate float64           `yaml:"samplingRate"`
	Headers      map[string]string `yaml:"headers"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	SMTP      SMTP      `yaml:"smtp"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Audit     Audit     `yaml:"audit"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Defaults returns the configuration used for every key the file omits.
func Defaults() Config {
	return Config{
		Server: Server{
			ListenAddress:   ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		SMTP: SMTP{
			DefaultHost: dispatch.DefaultSMTPHost,
			DefaultPort: dispatch.DefaultSMTPPort,
			DialRetries: 2,
			DialBackoff: 200 * time.Millisecond,
		},
		RateLimit: RateLimit{
			Enabled: true,
			API:     ratelimit.DefaultAPIConfig(),
			Send:    ratelimit.DefaultSendConfig(),
		},
		Audit: Audit{
			Log: true,
		},
		Telemetry: Telemetry{
			Exporter:     "otlp",
			SamplingRate: 1.0,
		},
	}
}

// Load reads the backend configuration from a file path on top of Defaults.
// If configPath is empty, DefaultPath is used. A missing file is reported
// with an error wrapping fs.ErrNotExist.
func Load(configPath ...string) (Config, error) {
	path := DefaultPath
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	config := Defaults()

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open bulkmail config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks values that would otherwise fail at first use.
func (c Config) Validate() error {
	var errs []error
	if c.Server.ListenAddress == "" {
		errs = append(errs, errors.New("server.listenAddress is required"))
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.tlsCertFile and server.tlsKeyFile must be set together"))
	}
	if c.SMTP.DefaultPort < 0 || c.SMTP.DefaultPort > 65535 {
		errs = append(errs, fmt.Errorf("smtp.defaultPort %d out of range", c.SMTP.DefaultPort))
	}
	if c.SMTP.DialRetries < 0 {
		errs = append(errs, errors.New("smtp.dialRetries must not be negative"))
	}
	if c.RateLimit.Enabled {
		for name, rl := range map[string]ratelimit.Config{"api": c.RateLimit.API, "send": c.RateLimit.Send} {
			if rl.Rate <= 0 || rl.Burst <= 0 {
				errs = append(errs, fmt.Errorf("rateLimit.%s needs a positive rate and burst", name))
			}
		}
	}
	if c.Audit.KafkaEnabled() {
		k := c.Audit.Kafka
		if k.Topic == "" {
			errs = append(errs, errors.New("audit.kafka.topic is required when brokers are set"))
		}
		switch strings.ToLower(k.Compression) {
		case "", "none", "gzip", "snappy", "lz4", "zstd":
		default:
			errs = append(errs, fmt.Errorf("audit.kafka.compression %q is not one of none, gzip, snappy, lz4, zstd", k.Compression))
		}
		switch strings.ToUpper(k.SASL.Mechanism) {
		case "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			errs = append(errs, fmt.Errorf("audit.kafka.sasl.mechanism %q is not one of PLAIN, SCRAM-SHA-256, SCRAM-SHA-512", k.SASL.Mechanism))
		}
	}
	switch c.Telemetry.Exporter {
	case "", "otlp", "stdout", "none":
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter %q is not one of otlp, stdout, none", c.Telemetry.Exporter))
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.samplingRate %v is outside [0, 1]", c.Telemetry.SamplingRate))
	}
	return errors.Join(errs...)
}
