package gatewayhttp

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"dashboard-gateway/internal/ratelimit"
)

const allowedHeaders = "authorization, content-type, apikey, x-client-info, x-client-version"

// CORS applies the gateway's CORS headers to every response and answers
// preflight OPTIONS requests with 204, short-circuiting the handler chain.
// methods is the comma-joined verb list reflected on Access-Control-Allow-Methods
// for this route group.
func CORS(allowedOrigin, methods string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Set("Access-Control-Allow-Headers", allowedHeaders)
		c.Set("Access-Control-Allow-Methods", methods)
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

// RequireMethod rejects any verb other than method with a plain-text 405,
// per the gateway's method-mismatch convention (not a JSON error body).
func RequireMethod(method string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != method {
			return c.Status(fiber.StatusMethodNotAllowed).SendString("Method Not Allowed")
		}
		return c.Next()
	}
}

// clientIP derives the caller's IP from the first of the forwarding
// headers the gateway trusts, falling back to "unknown".
func clientIP(c *fiber.Ctx) string {
	if v := c.Get("X-Forwarded-For"); v != "" {
		first := strings.TrimSpace(strings.Split(v, ",")[0])
		if first != "" {
			return first
		}
	}
	for _, h := range []string{"CF-Connecting-IP", "X-Real-IP", "X-Client-IP"} {
		if v := c.Get(h); v != "" {
			return v
		}
	}
	return "unknown"
}

// rateLimitKey derives the token-bucket key for an endpoint: the client IP
// alone for unauthenticated endpoints, or the IP combined with the last 16
// characters of the bearer token for authenticated ones, so a token
// rotation does not evict the caller's bucket.
func rateLimitKey(c *fiber.Ctx, authenticated bool) string {
	ip := clientIP(c)
	if !authenticated {
		return ip
	}
	token := bearerToken(c)
	suffix := token
	if len(token) > 16 {
		suffix = token[len(token)-16:]
	}
	return ip + "|" + suffix
}

func bearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// RateLimit builds middleware enforcing max requests per the limiter's
// configured window for one endpoint identifier. authenticated controls
// whether the bearer token contributes to the bucket key.
func RateLimit(limiter *ratelimit.Limiter, endpoint string, max int, authenticated bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := endpoint + "|" + rateLimitKey(c, authenticated)
		decision := limiter.Allow(key, max)
		if !decision.Allowed {
			retryAfter := ratelimit.RetryAfterSeconds(decision, time.Now())
			return RateLimited(retryAfter)
		}
		return c.Next()
	}
}
