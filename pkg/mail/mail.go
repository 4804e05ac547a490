package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/textproto"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/bulkmail/pkg/contacts"
	"github.com/telekom/bulkmail/pkg/dispatch"
	"github.com/telekom/bulkmail/pkg/metrics"
	"github.com/telekom/bulkmail/pkg/utils"
)

// AuthFailedMessage is reported to the operator when the relay rejects the credentials.
const AuthFailedMessage = "Authentication failed. Please check your email and App Password."

// ErrAuthentication is returned by Deliver when the SMTP relay rejects the login.
var ErrAuthentication = errors.New(AuthFailedMessage) //nolint:staticcheck // operator-facing text

// DialFunc opens an authenticated SMTP session for cfg.
type DialFunc func(cfg dispatch.SMTPConfig) (gomail.SendCloser, error)

// Option configures a Deliverer.
type Option func(*Deliverer)

// Deliverer sends one batch per call over a single SMTP session.
type Deliverer struct {
	dial       DialFunc
	retry      utils.RetryConfig
	insecure   bool
	senderName string
	log        *zap.SugaredLogger
}

// WithDialFunc replaces the gomail dialer, mostly for tests.
func WithDialFunc(fn DialFunc) Option {
	return func(d *Deliverer) { d.dial = fn }
}

// WithRetry sets how often session setup is retried before giving up.
func WithRetry(cfg utils.RetryConfig) Option {
	return func(d *Deliverer) { d.retry = cfg }
}

// WithInsecureSkipVerify disables certificate checks on STARTTLS.
func WithInsecureSkipVerify(insecure bool) Option {
	return func(d *Deliverer) { d.insecure = insecure }
}

// WithSenderName sets the display name used in the From header.
func WithSenderName(name string) Option {
	return func(d *Deliverer) { d.senderName = name }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(d *Deliverer) { d.log = log }
}

// NewDeliverer returns a Deliverer backed by gomail.
func NewDeliverer(opts ...Option) *Deliverer {
	d := &Deliverer{
		retry: utils.DefaultRetryConfig(),
		log:   zap.NewNop().Sugar(),
	}
	d.dial = d.dialSMTP
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Deliverer) dialSMTP(cfg dispatch.SMTPConfig) (gomail.SendCloser, error) {
	host := cfg.HostOrDefault()
	dialer := gomail.NewDialer(host, cfg.PortOrDefault(), cfg.Email, cfg.Password)
	if d.insecure {
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: host} //nolint:gosec // opt-in via config
	}
	return dialer.Dial()
}

// IsAuthError reports whether err is an SMTP authentication rejection.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthentication) {
		return true
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code == 534 || tpErr.Code == 535
	}
	return false
}

// Deliver opens one session, sends a personalised message to every contact
// and closes the session. A per-recipient failure is recorded in the results
// and does not stop the batch. Only a session that cannot be opened yields an
// error, which is ErrAuthentication when the relay rejected the login.
func (d *Deliverer) Deliver(ctx context.Context, req dispatch.BatchRequest) ([]dispatch.RecipientResult, error) {
	cfg := req.SMTPConfig
	relay := relayName(cfg)
	log := d.log.With("relay", relay, "sender", cfg.Email, "contacts", len(req.Contacts))

	var session gomail.SendCloser
	err := utils.Retry(ctx, d.retry, func(err error) bool { return !IsAuthError(err) }, func() error {
		s, err := d.dial(cfg)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		if IsAuthError(err) {
			metrics.SMTPSessionFailures.WithLabelValues(relay, "auth").Inc()
			log.Warnw("SMTP authentication rejected", "error", err.Error())
			return nil, ErrAuthentication
		}
		metrics.SMTPSessionFailures.WithLabelValues(relay, "dial").Inc()
		log.Warnw("SMTP session could not be opened", "error", err.Error())
		return nil, fmt.Errorf("smtp session to %s: %w", relay, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Debugw("SMTP session close failed", "error", err.Error())
		}
	}()

	log.Infow("SMTP session opened")
	results := make([]dispatch.RecipientResult, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		if err := ctx.Err(); err != nil {
			results = append(results, failed(c.Email(), fmt.Errorf("not attempted: %w", err)))
			continue
		}
		results = append(results, d.sendOne(session, req, c, relay, log))
	}
	return results, nil
}

func (d *Deliverer) sendOne(s gomail.SendCloser, req dispatch.BatchRequest, c contacts.Contact, relay string, log *zap.SugaredLogger) dispatch.RecipientResult {
	to := c.Email()
	if to == "" {
		metrics.MailSendFailure.WithLabelValues(relay).Inc()
		return failed(to, errors.New("contact has no email address"))
	}

	msg := gomail.NewMessage()
	if d.senderName != "" {
		msg.SetAddressHeader("From", req.SMTPConfig.Email, d.senderName)
	} else {
		msg.SetHeader("From", req.SMTPConfig.Email)
	}
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", Personalize(req.Template.Subject, c))
	msg.SetBody("text/plain", Personalize(req.Template.Body, c))

	if err := gomail.Send(s, msg); err != nil {
		metrics.MailSendFailure.WithLabelValues(relay).Inc()
		log.Infow("Send failed", "to", to, "error", err.Error())
		return failed(to, err)
	}
	metrics.MailSendSuccess.WithLabelValues(relay).Inc()
	log.Debugw("Sent", "to", to)
	return dispatch.RecipientResult{Email: to, Status: dispatch.RecipientStatusSent}
}

func failed(email string, err error) dispatch.RecipientResult {
	return dispatch.RecipientResult{Email: email, Status: dispatch.RecipientStatusFailed, Error: err.Error()}
}

func relayName(cfg dispatch.SMTPConfig) string {
	return cfg.HostOrDefault() + ":" + strconv.Itoa(cfg.PortOrDefault())
}
