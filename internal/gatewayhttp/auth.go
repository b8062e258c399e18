package gatewayhttp

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"dashboard-gateway/internal/identity"
)

const principalLocalsKey = "gatewayhttp.principal"

// authenticate resolves the bearer token on c into a Principal, stashing it
// on c.Locals for downstream handlers, or fails Unauthenticated.
func (s *Server) authenticate(c *fiber.Ctx) (*identity.Principal, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, Unauthenticated("Missing bearer token")
	}
	p, err := s.identity.ResolvePrincipal(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			return nil, Unauthenticated("Invalid or expired token")
		}
		return nil, Internal(err)
	}
	c.Locals(principalLocalsKey, p)
	return p, nil
}

// requireAdmin authenticates and additionally requires the "admin" role.
func (s *Server) requireAdmin(c *fiber.Ctx) (*identity.Principal, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, Unauthenticated("Missing bearer token")
	}
	p, err := s.identity.RequireRole(c.UserContext(), token, "admin")
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnauthenticated):
			return nil, Unauthenticated("Invalid or expired token")
		case errors.Is(err, identity.ErrForbidden):
			return nil, Forbidden("Admin role required")
		default:
			return nil, Internal(err)
		}
	}
	c.Locals(principalLocalsKey, p)
	return p, nil
}

// deviceID reads the client's device id header, required on every
// device-gated endpoint. The device-lifecycle endpoints take the device id
// from their JSON body instead.
func deviceID(c *fiber.Ctx) string {
	return c.Get("X-Client-Device-Id")
}

// requireApprovedDevice fails Forbidden unless principal's device (as named
// by X-Client-Device-Id) is in the approved state.
func (s *Server) requireApprovedDevice(c *fiber.Ctx, principalID string) error {
	if err := s.devices.RequireApproved(c.UserContext(), principalID, deviceID(c)); err != nil {
		return Forbidden("Device not approved")
	}
	return nil
}
