package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/telekom/bulkmail/pkg/dispatch"
	"github.com/telekom/bulkmail/pkg/readiness"
)

const (
	VersionV1 = "v1"
)

type Config struct {
	Version        string    `yaml:"version"`
	CurrentContext string    `yaml:"current-context,omitempty"`
	Contexts       []Context `yaml:"contexts,omitempty"`
	Settings       Settings  `yaml:"settings,omitempty"`
}

type Settings struct {
	OutputFormat string        `yaml:"output-format,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	Probe        ProbeSettings `yaml:"probe,omitempty"`
}

// ProbeSettings mirror readiness.RetryPolicy. Zero values use its defaults.
type ProbeSettings struct {
	Attempts int           `yaml:"attempts,omitempty"`
	Delay    time.Duration `yaml:"delay,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

type Context struct {
	Name                  string `yaml:"name"`
	Server                string `yaml:"server"`
	CAFile                string `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool   `yaml:"insecure-skip-tls-verify,omitempty"`
	SMTP                  SMTP   `yaml:"smtp,omitempty"`
}

// SMTP holds the sender defaults for a context. Passwords are never stored.
type SMTP struct {
	Host  string `yaml:"host,omitempty"`
	Port  int    `yaml:"port,omitempty"`
	Email string `yaml:"email,omitempty"`
}

func DefaultConfig() Config {
	policy := readiness.DefaultRetryPolicy()
	return Config{
		Version: VersionV1,
		Settings: Settings{
			OutputFormat: "table",
			Timeout:      30 * time.Second,
			Probe: ProbeSettings{
				Attempts: policy.MaxAttempts,
				Delay:    policy.Delay,
				Timeout:  policy.PerAttemptTimeout,
			},
		},
	}
}

// DefaultContext is the context written by "config init".
func DefaultContext() Context {
	return Context{
		Name:   "local",
		Server: "http://localhost:8000",
		SMTP: SMTP{
			Host: dispatch.DefaultSMTPHost,
			Port: dispatch.DefaultSMTPPort,
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) FindContext(name string) (*Context, error) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			return &c.Contexts[i], nil
		}
	}
	return nil, fmt.Errorf("context not found: %s", name)
}

func (c *Config) CurrentContextOrDefault() string {
	if c.CurrentContext != "" {
		return c.CurrentContext
	}
	if len(c.Contexts) > 0 {
		return c.Contexts[0].Name
	}
	return ""
}

// AddContext appends ctx, failing if the name is taken.
func (c *Config) AddContext(ctx Context) error {
	if _, err := c.FindContext(ctx.Name); err == nil {
		return fmt.Errorf("context already exists: %s", ctx.Name)
	}
	c.Contexts = append(c.Contexts, ctx)
	if c.CurrentContext == "" {
		c.CurrentContext = ctx.Name
	}
	return nil
}

// DeleteContext removes the named context and clears current-context if it pointed there.
func (c *Config) DeleteContext(name string) error {
	for i := range c.Contexts {
		if c.Contexts[i].Name != name {
			continue
		}
		c.Contexts = append(c.Contexts[:i], c.Contexts[i+1:]...)
		if c.CurrentContext == name {
			c.CurrentContext = ""
		}
		return nil
	}
	return fmt.Errorf("context not found: %s", name)
}

// RetryPolicy converts the probe settings.
func (s Settings) RetryPolicy() readiness.RetryPolicy {
	return readiness.RetryPolicy{
		MaxAttempts:       s.Probe.Attempts,
		Delay:             s.Probe.Delay,
		PerAttemptTimeout: s.Probe.Timeout,
	}
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	seen := make(map[string]struct{}, len(c.Contexts))
	for _, ctx := range c.Contexts {
		if strings.TrimSpace(ctx.Name) == "" {
			return errors.New("context name cannot be empty")
		}
		if _, dup := seen[ctx.Name]; dup {
			return fmt.Errorf("context %s is defined more than once", ctx.Name)
		}
		seen[ctx.Name] = struct{}{}
		if strings.TrimSpace(ctx.Server) == "" {
			return fmt.Errorf("context %s server is required", ctx.Name)
		}
		if ctx.SMTP.Port < 0 || ctx.SMTP.Port > 65535 {
			return fmt.Errorf("context %s smtp port %d out of range", ctx.Name, ctx.SMTP.Port)
		}
	}
	if c.Settings.Probe.Attempts < 0 {
		return errors.New("probe attempts cannot be negative")
	}
	if c.Settings.Probe.Delay < 0 || c.Settings.Probe.Timeout < 0 || c.Settings.Timeout < 0 {
		return errors.New("durations cannot be negative")
	}
	return nil
}
