package app

import (
	"fmt"
	"strings"
	"time"

	"example/meal-planner-api/app/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// ConfigureLogging applies the configured level and format to the global logrus logger.
func ConfigureLogging(cfg config.LogConfig) error {
	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Level, err)
	}
	logrus.SetLevel(parsed)
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	return nil
}

// NewModuleLogger returns a logger tagged with the module name.
func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// loggerFor tags a module logger with the request id of c.
func loggerFor(logger logrus.FieldLogger, c *gin.Context) logrus.FieldLogger {
	return logger.WithField("request_id", c.GetString(requestIDHeader))
}

// RequestLogger assigns a request id and writes one entry per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = fmt.Sprintf("rest-%s", uuid.New().String())
		}
		c.Set(requestIDHeader, reqID)
		c.Header(requestIDHeader, reqID)

		c.Next()

		latency := time.Since(start)
		entry := logrus.WithFields(logrus.Fields{
			"request_id": reqID,
			"remote_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"uri":        c.Request.URL.Path,
			"route":      c.FullPath(),
			"status":     c.Writer.Status(),
			"latency":    latency.String(),
			"latency_ns": latency.Nanoseconds(),
			"user_agent": c.Request.UserAgent(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithError(c.Errors.Last())
		}
		entry.Info("http_request")
	}
}
