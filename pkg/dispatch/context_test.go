package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = RequestIDFromContext(ContextWithRequestID(context.Background(), ""))
	assert.False(t, ok, "empty id is treated as unset")

	id, ok := RequestIDFromContext(ContextWithRequestID(context.Background(), "run-1"))
	assert.True(t, ok)
	assert.Equal(t, "run-1", id)
}
