package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

const (
	// HeaderRequestID carries the request id in and out
	HeaderRequestID = "X-Request-ID"
	// HeaderUserID identifies the calling user. Authentication happens upstream.
	HeaderUserID = "X-User-ID"

	requestIDKey = "request_id"
	userIDKey    = "user_id"
)

// requestIDMiddleware reuses or mints a request id and makes it the correlation id of emitted events
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(event.WithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}

// identityMiddleware requires a positive numeric X-User-ID
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader(HeaderUserID), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid " + HeaderUserID + " header",
			})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// adminMiddleware admits active users holding the admin role
func adminMiddleware(directory port.DirectoryReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := directory.GetUserByID(c.Request.Context(), currentUserID(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
				Success: false,
				Error:   "failed to load user",
			})
			return
		}
		if user == nil || !user.IsActive() || !user.HasRole(entity.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "admin role required",
			})
			return
		}

		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

// accessLogMiddleware writes one line per request; 5xx responses are logged as errors
func accessLogMiddleware(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"elapsed_ms", time.Since(begin).Milliseconds(),
			"request_id", c.GetString(requestIDKey),
			"user_id", currentUserID(c),
			"remote", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed", kv...)
			return
		}
		logger.Info("Request served", kv...)
	}
}
