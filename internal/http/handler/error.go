package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"mediagateway/internal/http/middleware"
	"mediagateway/internal/httprange"
	"mediagateway/internal/service"
)

// statusClientClosedRequest is the nginx convention for a caller that disconnected.
const statusClientClosedRequest = 499

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError translates a service error class into its HTTP status. Client
// errors carry the service's message; everything else is logged and hidden.
func writeServiceError(c *fiber.Ctx, err error) error {
	var rerr *service.RangeError
	switch {
	case errors.As(err, &rerr):
		c.Set(fiber.HeaderContentRange, httprange.UnsatisfiedRange(rerr.Size))
		return writeError(c, fiber.StatusRequestedRangeNotSatisfiable, "RANGE_NOT_SATISFIABLE", "requested range not satisfiable")
	case errors.Is(err, service.ErrBadRequest):
		return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, service.ErrPayloadTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "media not found")
	case errors.Is(err, service.ErrGatewayTimeout):
		return writeError(c, fiber.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "upstream did not respond in time")
	case errors.Is(err, service.ErrRequestCanceled):
		// Nobody is left to read the response.
		zerolog.Ctx(c.UserContext()).Debug().Err(err).Str("path", c.Path()).Msg("request canceled")
		return writeError(c, statusClientClosedRequest, "REQUEST_CANCELED", "request canceled")
	default:
		logger := zerolog.Ctx(c.UserContext())
		logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		case fiber.StatusRequestedRangeNotSatisfiable:
			return writeError(c, status, "RANGE_NOT_SATISFIABLE", "requested range not satisfiable")
		case fiber.StatusGatewayTimeout:
			return writeError(c, status, "UPSTREAM_TIMEOUT", "upstream did not respond in time")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
