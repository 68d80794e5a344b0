package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(b), &entry))
	return entry
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID(zerolog.Nop()))
	app.Get("/echo", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(RequestIDLocalKey).(string))
	})

	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generated when absent"},
		{name: "propagated when present", incoming: "upstream-id-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/echo", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)

			got := resp.Header.Get(RequestIDHeader)
			assert.Equal(t, got, string(body))
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, got)
			} else {
				_, err := uuid.Parse(got)
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestID_ContextLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID(zerolog.New(&buf)))
	app.Get("/media/book/1", func(c *fiber.Ctx) error {
		zerolog.Ctx(c.UserContext()).Info().Msg("resolving record")
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/media/book/1", nil)
	req.Header.Set(RequestIDHeader, "rid-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	entry := decodeLine(t, buf.Bytes())
	assert.Equal(t, "rid-42", entry["request_id"])
	assert.Equal(t, "resolving record", entry["message"])
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID(zerolog.Nop()))
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Get("/media/:category/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusPartialContent)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/media/audio/9?x=1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusPartialContent, resp.StatusCode)

	entry := decodeLine(t, buf.Bytes())
	assert.Equal(t, resp.Header.Get(RequestIDHeader), entry["request_id"])
	assert.Equal(t, fiber.MethodGet, entry["method"])
	assert.Equal(t, "/media/audio/9", entry["path"])
	assert.Equal(t, float64(fiber.StatusPartialContent), entry["status"])
	assert.Equal(t, "request", entry["message"])
	assert.IsType(t, float64(0), entry["latency"])

	ts, ok := entry["ts"].(string)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{fiber.StatusOK, "info"},
		{fiber.StatusRequestedRangeNotSatisfiable, "warn"},
		{fiber.StatusGatewayTimeout, "error"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		app := fiber.New()
		app.Use(Logger(zerolog.New(&buf)))
		app.Get("/x", func(c *fiber.Ctx) error {
			return c.SendStatus(tt.status)
		})

		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/x", nil))
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode)

		entry := decodeLine(t, buf.Bytes())
		assert.Equal(t, tt.level, entry["level"], "status %d", tt.status)
	}
}
