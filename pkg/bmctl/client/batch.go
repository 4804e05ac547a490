package client

import (
	"context"

	"github.com/telekom/bulkmail/pkg/dispatch"
	"github.com/telekom/bulkmail/pkg/metrics"
)

// Send submits req in exactly one call and classifies the reply. It never
// retries and never returns an error: failures are encoded in the outcome.
func (c *Client) Send(ctx context.Context, req dispatch.BatchRequest) dispatch.Outcome {
	c.log.Debugw("Submitting batch",
		"server", c.Server(),
		"contacts", len(req.Contacts),
		"smtpHost", req.SMTPConfig.Host)

	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(dispatch.SendPath)
	if err != nil {
		c.log.Warnw("Batch submission did not reach the backend", "error", err)
		outcome := dispatch.NewTransportFailure(err)
		metrics.DispatchOutcomes.WithLabelValues(string(outcome.Kind)).Inc()
		return outcome
	}

	outcome := dispatch.Interpret(resp.StatusCode(), resp.Status(), resp.Body())
	c.log.Debugw("Batch submission answered",
		"status", resp.StatusCode(),
		"kind", outcome.Kind,
		"results", len(outcome.Results))
	metrics.DispatchOutcomes.WithLabelValues(string(outcome.Kind)).Inc()
	return outcome
}
