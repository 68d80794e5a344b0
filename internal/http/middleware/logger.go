package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Logger is a middleware that logs each HTTP request through base.
// Fields:
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
// - ts (request start, RFC 3339 in UTC)
func Logger(base zerolog.Logger) fiber.Handler {
	return requestLogger(base, time.UTC)
}

// LoggerWithWriter logs one JSON object per request to w, with ts rendered in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return requestLogger(zerolog.New(w), loc)
}

func requestLogger(base zerolog.Logger, loc *time.Location) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Collect fields after handler executed to capture final status
		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := c.Response().StatusCode()

		ev := base.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = base.Error()
		case status >= fiber.StatusBadRequest:
			ev = base.Warn()
		}
		ev.Str("request_id", rid).
			Str("method", c.Method()).
			// Use only the path segment (no query string)
			Str("path", c.Path()).
			Int("status", status).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Str("ts", start.In(loc).Format(time.RFC3339Nano)).
			Msg("request")

		return err
	}
}
