package api

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/apiresponses"
	"github.com/telekom/bulkmail/pkg/audit"
	"github.com/telekom/bulkmail/pkg/cli"
	"github.com/telekom/bulkmail/pkg/config"
	"github.com/telekom/bulkmail/pkg/dispatch"
	"github.com/telekom/bulkmail/pkg/metrics"
	"github.com/telekom/bulkmail/pkg/ratelimit"
	"github.com/telekom/bulkmail/pkg/system"
)

// Deliverer sends one batch and reports a result per contact.
type Deliverer interface {
	Deliver(ctx context.Context, req dispatch.BatchRequest) ([]dispatch.RecipientResult, error)
}

// devOrigins are allowed in debug mode so a locally served UI can call the API.
var devOrigins = []string{"http://localhost:5173", "http://127.0.0.1:8080"}

type Server struct {
	gin         *gin.Engine
	config      config.Config
	log         *zap.SugaredLogger
	deliverer   Deliverer
	auditSink   audit.Sink
	apiLimiter  *ratelimit.Limiter
	sendLimiter *ratelimit.Limiter
	enableHTTP2 bool

	mu   sync.Mutex
	http *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAuditSink sets where batch audit events go. Without it events are dropped.
func WithAuditSink(sink audit.Sink) Option {
	return func(s *Server) { s.auditSink = sink }
}

// WithHTTP2 keeps HTTP/2 enabled on the TLS listener.
func WithHTTP2(enabled bool) Option {
	return func(s *Server) { s.enableHTTP2 = enabled }
}

// NewServer builds the gin engine and registers every route.
func NewServer(log *zap.Logger, cfg config.Config, debug, enableMetrics bool, deliverer Deliverer, opts ...Option) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		otelgin.Middleware("bulkmail"),
		system.RequestLogger(log.Sugar()),
	)

	var proxies []string
	if len(cfg.Server.TrustedProxies) > 0 {
		proxies = cfg.Server.TrustedProxies
	}
	if err := engine.SetTrustedProxies(proxies); err != nil {
		log.Sugar().Warnw("Ignoring invalid trusted proxies", "proxies", proxies, "error", err)
	}

	origins := append([]string{}, cfg.Server.CORSOrigins...)
	if debug {
		origins = append(origins, devOrigins...)
	}
	if len(origins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", system.RequestIDHeader},
			ExposeHeaders: []string{system.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	s := &Server{
		gin:       engine,
		config:    cfg,
		log:       log.Sugar(),
		deliverer: deliverer,
	}
	for _, opt := range opts {
		opt(s)
	}

	healthChain := []gin.HandlerFunc{}
	sendChain := []gin.HandlerFunc{}
	if cfg.RateLimit.Enabled {
		s.apiLimiter = ratelimit.New(cfg.RateLimit.API)
		s.sendLimiter = ratelimit.New(cfg.RateLimit.Send)
		healthChain = append(healthChain, s.apiLimiter.Middleware())
		sendChain = append(sendChain, s.sendLimiter.Middleware())
	}

	api := engine.Group("api")
	api.GET("health", append(healthChain, s.handleHealth)...)
	api.POST("send", append(sendChain, s.handleSend)...)

	if enableMetrics {
		engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))
	}

	if cfg.Server.PublicDir != "" {
		engine.NoRoute(ServeUI("/", cfg.Server.PublicDir))
	} else {
		engine.NoRoute(func(c *gin.Context) {
			apiresponses.RespondNotFound(c, "Endpoint not found")
		})
	}

	return s
}

// Handler exposes the engine, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until Shutdown is called. TLS is used when both certificate
// files are configured.
func (s *Server) Listen() error {
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.log.Infow("Starting bulkmail backend", "address", srv.Addr, "tls", s.config.Server.TLSCertFile != "")

	var err error
	if s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != "" {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		if !s.enableHTTP2 {
			cli.DisableHTTP2(srv.TLSConfig)
		}
		err = srv.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown waits for in-flight batches up to ctx's deadline and then releases
// the rate limiters and the audit sink.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.Close()
	return err
}

// Close stops background work without touching the listener. It is safe to call more than once.
func (s *Server) Close() {
	if s.apiLimiter != nil {
		s.apiLimiter.Stop()
	}
	if s.sendLimiter != nil {
		s.sendLimiter.Stop()
	}
	if s.auditSink != nil {
		if err := s.auditSink.Close(); err != nil {
			s.log.Warnw("Closing audit sink failed", "error", err)
		}
	}
}
