// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// RequestIDKey is the gin context key holding the request's correlation ID.
const RequestIDKey = "requestID"

// RequestIDHeader carries the correlation ID between bmctl and the backend.
const RequestIDHeader = "X-Request-ID"

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise returns the fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// RequestID returns the correlation ID stored by RequestLogger, or "".
func RequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(RequestIDKey)
}

// RequestLogger stores a logger tagged with the request's correlation ID and
// client IP in the gin context. The ID is taken from X-Request-ID when the
// caller sent one and generated otherwise; it is echoed in the response.
func RequestLogger(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Set(ReqLoggerKey, base.With("requestID", id, "clientIP", c.ClientIP()))
		c.Next()
	}
}

// EnrichReqLoggerWithSender annotates the request-scoped logger with the
// batch's sender identity and relay. Empty values are skipped.
func EnrichReqLoggerWithSender(reqLogger *zap.SugaredLogger, sender, relay string) *zap.SugaredLogger {
	if reqLogger == nil {
		return nil
	}
	if sender != "" {
		reqLogger = reqLogger.With("sender", sender)
	}
	if relay != "" {
		reqLogger = reqLogger.With("relay", relay)
	}
	return reqLogger
}
