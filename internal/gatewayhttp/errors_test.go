package gatewayhttp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(handler fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/x", handler)
	return app
}

func decodeErrorBody(t *testing.T, body io.Reader) errorBody {
	t.Helper()
	var b errorBody
	if err := json.NewDecoder(body).Decode(&b); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return b
}

func TestErrorHandler_RendersPlainMessageEnvelope(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return Forbidden("Admin role required")
	})

	req, _ := http.NewRequest("GET", "/x", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	body := decodeErrorBody(t, resp.Body)
	if body.Error != "Admin role required" {
		t.Fatalf("error = %q, want %q", body.Error, "Admin role required")
	}
	if body.RetryAfterSeconds != nil {
		t.Fatal("retryAfterSeconds should be absent for a non-rate-limit error")
	}
}

func TestErrorHandler_RateLimitedCarriesRetryAfter(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return RateLimited(42)
	})

	req, _ := http.NewRequest("GET", "/x", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "42" {
		t.Fatalf("Retry-After = %q, want 42", got)
	}
	body := decodeErrorBody(t, resp.Body)
	if body.RetryAfterSeconds == nil || *body.RetryAfterSeconds != 42 {
		t.Fatalf("retryAfterSeconds = %v, want 42", body.RetryAfterSeconds)
	}
}

func TestErrorHandler_InternalDoesNotLeakCause(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return Internal(errors.New("db connection string exposed: postgres://u:p@host/db"))
	})

	req, _ := http.NewRequest("GET", "/x", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeErrorBody(t, resp.Body)
	if body.Error != "Internal server error" {
		t.Fatalf("error = %q, leaked internal detail", body.Error)
	}
}

func TestErrorHandler_UncaughtErrorFallsBackTo500(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req, _ := http.NewRequest("GET", "/x", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
