/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apiresponses

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/dispatch"
)

// APIError is the body of every failed backend call. Clients read Message.
type APIError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, code int, message string) {
	if message == "" {
		message = http.StatusText(code)
	}
	c.JSON(code, APIError{Status: dispatch.ResponseStatusError, Message: message})
}

// RespondBadRequest sends a 400 Bad Request response.
// Use this for malformed JSON or missing request fields.
func RespondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// RespondNotFound sends a 404 Not Found response.
func RespondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, message)
}

// RespondInternalError sends a 500 response whose message is shown to the
// operator as is. err is logged with full details when log is set.
func RespondInternalError(c *gin.Context, message string, err error, log *zap.SugaredLogger) {
	if log != nil && err != nil {
		log.Errorw(message, "error", err)
	}
	respondError(c, http.StatusInternalServerError, message)
}

// RespondServiceUnavailable sends a 503 Service Unavailable response.
func RespondServiceUnavailable(c *gin.Context, message string) {
	respondError(c, http.StatusServiceUnavailable, message)
}

// RespondOK sends a 200 OK response with the given data.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondTooManyRequests aborts with 429 and a Retry-After of at least one second.
func RespondTooManyRequests(c *gin.Context, message string, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, APIError{Status: dispatch.ResponseStatusError, Message: message})
}
