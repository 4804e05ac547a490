package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/telekom/bulkmail/pkg/dispatch"
)

// Health issues one health request. Any 2xx reply is healthy; other statuses
// return *HTTPError and transport problems are returned unchanged.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.request(ctx).Get(dispatch.HealthPath)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if !resp.IsSuccess() {
		msg := strings.TrimSpace(string(resp.Body()))
		if msg == "" {
			msg = resp.Status()
		}
		return &HTTPError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}
