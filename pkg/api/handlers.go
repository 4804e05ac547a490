package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/telekom/bulkmail/pkg/apiresponses"
	"github.com/telekom/bulkmail/pkg/audit"
	"github.com/telekom/bulkmail/pkg/dispatch"
	"github.com/telekom/bulkmail/pkg/mail"
	"github.com/telekom/bulkmail/pkg/metrics"
	"github.com/telekom/bulkmail/pkg/system"
)

// CompletedMessage is the message of every successful send reply.
const CompletedMessage = "Email processing completed"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, dispatch.HealthResponse{Status: "ok"})
}

func (s *Server) handleSend(c *gin.Context) {
	log := system.GetReqLogger(c, s.log)

	var req dispatch.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.BatchesReceived.WithLabelValues("rejected").Inc()
		s.emit(c, audit.NewEvent(audit.EventBatchRejected, audit.SeverityWarning).WithDetail("reason", err.Error()), req)
		apiresponses.RespondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.SMTPConfig.Email == "" {
		metrics.BatchesReceived.WithLabelValues("rejected").Inc()
		s.emit(c, audit.NewEvent(audit.EventBatchRejected, audit.SeverityWarning).WithDetail("reason", "missing sender"), req)
		apiresponses.RespondBadRequest(c, "smtp_config.email is required")
		return
	}
	s.applyDefaults(&req.SMTPConfig)

	log = system.EnrichReqLoggerWithSender(log, req.SMTPConfig.Email, relay(req.SMTPConfig))
	log.Infow("Received send request", "contacts", len(req.Contacts))
	metrics.BatchRecipients.Observe(float64(len(req.Contacts)))

	results, err := s.deliverer.Deliver(c.Request.Context(), req)
	if err != nil {
		metrics.BatchesReceived.WithLabelValues("failed").Inc()
		msg := err.Error()
		if errors.Is(err, mail.ErrAuthentication) {
			msg = mail.AuthFailedMessage
		}
		s.emit(c, audit.NewEvent(audit.EventBatchFailed, audit.SeverityCritical).
			WithDetail("contacts", len(req.Contacts)).
			WithDetail("error", msg), req)
		apiresponses.RespondInternalError(c, msg, err, log)
		return
	}

	sent := 0
	for _, r := range results {
		if r.Delivered() {
			sent++
		}
	}
	log.Infow("Batch processed", "sent", sent, "failed", len(results)-sent)
	metrics.BatchesReceived.WithLabelValues("completed").Inc()
	s.emit(c, audit.NewEvent(audit.EventBatchDispatched, audit.SeverityInfo).
		WithDetail("contacts", len(req.Contacts)).
		WithDetail("sent", sent).
		WithDetail("failed", len(results)-sent), req)

	apiresponses.RespondOK(c, dispatch.Response{
		Status:  dispatch.ResponseStatusSuccess,
		Message: CompletedMessage,
		Results: results,
	})
}

func (s *Server) applyDefaults(cfg *dispatch.SMTPConfig) {
	if cfg.Host == "" {
		cfg.Host = s.config.SMTP.DefaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = s.config.SMTP.DefaultPort
	}
}

// emit fills the request-derived fields and writes the event. Audit failures
// never change the reply.
func (s *Server) emit(c *gin.Context, event *audit.Event, req dispatch.BatchRequest) {
	if s.auditSink == nil {
		return
	}
	event.Actor = audit.Actor{
		User:      req.SMTPConfig.Email,
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	event.Target = audit.Target{Kind: "smtp", Name: relay(req.SMTPConfig)}
	event.RequestContext = &audit.RequestContext{
		CorrelationID: system.RequestID(c),
		Path:          c.FullPath(),
	}
	ctx := context.WithoutCancel(c.Request.Context())
	if err := s.auditSink.Write(ctx, event); err != nil {
		system.GetReqLogger(c, s.log).Warnw("Audit event dropped", "event_type", event.Type, "error", err.Error())
	}
}

func relay(cfg dispatch.SMTPConfig) string {
	if cfg.Host == "" {
		return ""
	}
	return cfg.Host + ":" + strconv.Itoa(cfg.Port)
}
