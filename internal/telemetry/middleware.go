package telemetry

import (
	"math/rand"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TraceMiddleware generates (or propagates, via X-Trace-ID) a trace id for
// every inbound request and echoes it on the response, regardless of
// whether telemetry ends up recording any spans for this request. It runs
// ahead of authentication and tenant resolution, both of which are
// per-endpoint concerns.
func TraceMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get("X-Trace-ID")
		if traceID == "" {
			traceID = newUUID()
		}
		c.SetUserContext(WithTraceID(c.UserContext(), traceID))
		c.Set("X-Trace-ID", traceID)
		return c.Next()
	}
}

// StartRequestSpan attaches a (possibly Noop) Instrumenter to c's user
// context, bound to tenantKey's event buffer, and starts the root HTTP
// span. The caller must End() the returned span once the handler
// completes (typically via defer).
func (m *Manager) StartRequestSpan(c *fiber.Ctx, tenantKey string, pool *pgxpool.Pool) Span {
	ctx := c.UserContext()

	if !m.enabled || pool == nil || (m.samplingRate < 1.0 && rand.Float64() > m.samplingRate) {
		inst := Instrumenter(Noop{})
		ctx = WithInstrumenter(ctx, inst)
		c.SetUserContext(ctx)
		_, span := inst.StartSpan(ctx, "http", "handler", "request")
		return span
	}

	buffer := m.BufferFor(tenantKey, pool)
	inst := NewLive(buffer)
	ctx = WithInstrumenter(ctx, inst)
	ctx, span := inst.StartSpan(ctx, "http", "handler", "request")
	span.SetMetadata("method", c.Method())
	span.SetMetadata("path", c.Path())
	c.SetUserContext(ctx)
	return span
}

// FinishRequestSpan records the response status on span and ends it. Call
// after the handler chain completes, with the final response status code.
func FinishRequestSpan(span Span, statusCode int) {
	span.SetMetadata("status_code", statusCode)
	if statusCode >= 400 {
		span.SetStatus("error")
	} else {
		span.SetStatus("ok")
	}
	span.End()
}
