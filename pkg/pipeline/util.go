package pipeline

import (
	"errors"
	"strings"

	"github.com/telekom/bulkmail/pkg/readiness"
)

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// causeOf unwraps a ConnectivityError to the last attempt's failure.
func causeOf(err error) error {
	var connErr *readiness.ConnectivityError
	if errors.As(err, &connErr) && connErr.Cause != nil {
		return connErr.Cause
	}
	return err
}
