package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reelcast/internal/logging"
	"reelcast/internal/services"
)

const requestIDHeader = "X-Request-ID"

// requestContext tags each request with a correlation id and logs it once
// the handler returns.
func requestContext(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		ctx := services.WithRequestID(c.Request.Context(), id)
		if projectID := c.Param("id"); projectID != "" {
			ctx = services.WithProjectID(ctx, projectID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, id)

		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []logging.Attr{
			logging.String("method", c.Request.Method),
			logging.String("route", c.FullPath()),
			logging.Int("status", status),
			logging.Duration("elapsed", time.Since(started)),
		}
		reqLogger := logging.WithContext(ctx, logger)
		if status >= http.StatusInternalServerError {
			reqLogger.Error("api request failed", logging.Args(attrs...)...)
			return
		}
		reqLogger.Debug("api request", logging.Args(attrs...)...)
	}
}

// bearerAuth rejects requests without the configured token. An empty token
// disables the check.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}
