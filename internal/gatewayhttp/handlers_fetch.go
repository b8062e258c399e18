package gatewayhttp

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"dashboard-gateway/internal/central"
	"dashboard-gateway/internal/dashboard"
	"dashboard-gateway/internal/telemetry"
)

// tenantKeyOf derives the telemetry buffer key for a tenant: host+dbname
// identifies one physical database regardless of which principal it was
// resolved through.
func tenantKeyOf(c *central.Coordinates) string {
	return c.Host + "/" + c.DBName
}

// lookupCoords resolves the caller's tenant coordinates, translating a
// missing row into NotFound rather than a bare infrastructure error.
func (s *Server) lookupCoords(c *fiber.Ctx, principalID string) (*central.Coordinates, error) {
	coords, err := s.central.LookupTenant(c.UserContext(), principalID)
	if err != nil {
		if errors.Is(err, central.ErrNotFound) {
			return nil, NotFound("Tenant not found")
		}
		return nil, Internal(err)
	}
	return coords, nil
}

// handleFetchUserData is the data-fetch orchestration: authenticate, look
// up tenant coordinates, borrow the tenant pool, run the batch executor,
// release, respond.
func (s *Server) handleFetchUserData(c *fiber.Ctx) error {
	principal, err := s.authenticate(c)
	if err != nil {
		return err
	}

	var req dashboard.Request
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return BadRequest("Malformed JSON body")
		}
	}

	coords, err := s.lookupCoords(c, principal.ID)
	if err != nil {
		return err
	}

	var resp *dashboard.Response
	runErr := s.tenants.WithConnection(c.UserContext(), coords, func(pool *pgxpool.Pool) error {
		span := s.telemetry.StartRequestSpan(c, tenantKeyOf(coords), pool)
		var innerErr error
		defer func() {
			status := fiber.StatusOK
			if innerErr != nil {
				status = fiber.StatusInternalServerError
			}
			telemetry.FinishRequestSpan(span, status)
		}()
		resp, innerErr = s.executor.Run(c.UserContext(), pool, coords, principal, req)
		return innerErr
	})
	if runErr != nil {
		return Internal(runErr)
	}

	return c.JSON(resp)
}
