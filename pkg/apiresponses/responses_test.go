package apiresponses

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		respond func(c *gin.Context)
		code    int
		message string
	}{
		{"bad request", func(c *gin.Context) { RespondBadRequest(c, "invalid JSON") }, http.StatusBadRequest, "invalid JSON"},
		{"not found", func(c *gin.Context) { RespondNotFound(c, "") }, http.StatusNotFound, "Not Found"},
		{"internal", func(c *gin.Context) { RespondInternalError(c, "smtp down", nil, nil) }, http.StatusInternalServerError, "smtp down"},
		{"unavailable", func(c *gin.Context) { RespondServiceUnavailable(c, "draining") }, http.StatusServiceUnavailable, "draining"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.respond(c)

			assert.Equal(t, tt.code, w.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestRespondInternalErrorLogs(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondInternalError(c, "batch failed", errors.New("dial tcp: refused"), zap.New(core).Sugar())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "batch failed", logs.All()[0].Message)
	assert.NotContains(t, w.Body.String(), "dial tcp")
}

func TestRespondOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondOK(c, gin.H{"status": "ok"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
