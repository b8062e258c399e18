// Package gatewayhttp wires the C1–C9 collaborators into the C10 request
// orchestrator: route registration, the CORS/rate-limit/auth/device-gate
// middleware chain, and the HTTP handlers for every endpoint.
package gatewayhttp

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Kind is one of the typed error kinds the gateway surfaces to callers.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindRateLimited     Kind = "rate_limited"
	KindBadRequest      Kind = "bad_request"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindUnauthenticated: fiber.StatusUnauthorized,
	KindForbidden:       fiber.StatusForbidden,
	KindRateLimited:     fiber.StatusTooManyRequests,
	KindBadRequest:      fiber.StatusBadRequest,
	KindNotFound:        fiber.StatusNotFound,
	KindConflict:        fiber.StatusConflict,
	KindInternal:        fiber.StatusInternalServerError,
}

// Error is the gateway's typed error: unlike the admin-CRUD engine it
// wraps, the caller-visible body is a plain `{"error": message}` object,
// never a code/details envelope.
type Error struct {
	Kind              Kind
	Message           string
	RetryAfterSeconds int
	Cause             error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func Unauthenticated(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func BadRequest(msg string) *Error      { return &Error{Kind: KindBadRequest, Message: msg} }
func NotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error        { return &Error{Kind: KindConflict, Message: msg} }

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Cause: cause}
}

// RateLimited builds a 429 error carrying the Retry-After value the rate
// limiter computed.
func RateLimited(retryAfterSeconds int) *Error {
	return &Error{Kind: KindRateLimited, Message: "Too many requests", RetryAfterSeconds: retryAfterSeconds}
}

// errorBody is the wire shape of every typed-error response:
// `{"error": "<message>"}`, plus retryAfterSeconds when rate-limited.
type errorBody struct {
	Error             string `json:"error"`
	RetryAfterSeconds *int   `json:"retryAfterSeconds,omitempty"`
}

// ErrorHandler is installed as the Fiber app's centralised error handler.
// It never leaks a Go error's internal detail for Kind == Internal; those
// are logged server-side only.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		if gwErr.Kind == KindInternal {
			log.Printf("gatewayhttp: internal error on %s %s: %v", c.Method(), c.Path(), gwErr.Cause)
		}
		body := errorBody{Error: gwErr.Message}
		if gwErr.Kind == KindRateLimited {
			body.RetryAfterSeconds = &gwErr.RetryAfterSeconds
			c.Set("Retry-After", strconv.Itoa(gwErr.RetryAfterSeconds))
		}
		return c.Status(statusByKind[gwErr.Kind]).JSON(body)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(errorBody{Error: fiberErr.Message})
	}

	log.Printf("gatewayhttp: uncaught error on %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Error: "Internal server error"})
}
