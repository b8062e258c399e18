package gatewayhttp

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestBearerToken_ExtractsFromAuthorizationHeader(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString(bearerToken(c)) })

	req, _ := http.NewRequest("GET", "/x", nil)
	req.Header.Set("Authorization", "Bearer tok123")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	buf := make([]byte, 32)
	n, _ := resp.Body.Read(buf)
	if got := string(buf[:n]); got != "tok123" {
		t.Fatalf("bearerToken = %q, want tok123", got)
	}
}

func TestBearerToken_EmptyWithoutBearerPrefix(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString("[" + bearerToken(c) + "]") })

	req, _ := http.NewRequest("GET", "/x", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	buf := make([]byte, 32)
	n, _ := resp.Body.Read(buf)
	if got := string(buf[:n]); got != "[]" {
		t.Fatalf("bearerToken = %q, want empty", got)
	}
}

func TestDeviceID_ReadsClientDeviceIDHeader(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString(deviceID(c)) })

	req, _ := http.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Client-Device-Id", "dev-42")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	buf := make([]byte, 32)
	n, _ := resp.Body.Read(buf)
	if got := string(buf[:n]); got != "dev-42" {
		t.Fatalf("deviceID = %q, want dev-42", got)
	}
}
