package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/dispatch"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "bmctl"
	requestIDHeader  = "X-Request-ID"
)

type Client struct {
	baseURL   *url.URL
	http      *resty.Client
	userAgent string
	timeout   time.Duration
	tlsConfig *tls.Config
	log       *zap.SugaredLogger
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL.String()).
		SetTimeout(c.timeout).
		SetLogger(c.log).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent)
	if c.tlsConfig != nil {
		c.http.SetTLSClientConfig(c.tlsConfig)
	}
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid server: %q must include scheme and host", server)
		}
		c.baseURL = parsed
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

// WithTimeout bounds every request made by the client. Per-call deadlines
// from the context still apply when they are shorter.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout: %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig, err := loadTLSConfig(caFile, insecureSkipTLSVerify)
		if err != nil {
			return err
		}
		c.tlsConfig = tlsConfig
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure}
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// Server returns the backend base URL.
func (c *Client) Server() string {
	return c.baseURL.String()
}

func requestID(ctx context.Context) string {
	if id, ok := dispatch.RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.New().String()
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, requestID(ctx))
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}
