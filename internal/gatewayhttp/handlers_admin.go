package gatewayhttp

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"dashboard-gateway/internal/admin"
	"dashboard-gateway/internal/dashboard"
)

// adminGate authenticates, requires the admin role, then requires the
// caller's device be approved, per the admin-endpoint composition rule.
func (s *Server) adminGate(c *fiber.Ctx) (*adminPrincipalCtx, error) {
	principal, err := s.requireAdmin(c)
	if err != nil {
		return nil, err
	}
	if err := s.requireApprovedDevice(c, principal.ID); err != nil {
		return nil, err
	}
	return &adminPrincipalCtx{id: principal.ID}, nil
}

type adminPrincipalCtx struct{ id string }

func (s *Server) handleManageTable(c *fiber.Ctx) error {
	p, err := s.adminGate(c)
	if err != nil {
		return err
	}

	var in admin.ChartInput
	if err := c.BodyParser(&in); err != nil {
		return BadRequest("Malformed JSON body")
	}

	coords, err := s.lookupCoords(c, p.id)
	if err != nil {
		return err
	}

	var result *admin.Result
	runErr := s.tenants.WithConnection(c.UserContext(), coords, func(pool *pgxpool.Pool) error {
		var innerErr error
		result, innerErr = admin.ManageTable(c.UserContext(), pool, coords.CompanyName, in)
		return innerErr
	})
	if runErr != nil {
		return BadRequest(runErr.Error())
	}

	return c.JSON(result)
}

func (s *Server) handleManageGraph(c *fiber.Ctx) error {
	p, err := s.adminGate(c)
	if err != nil {
		return err
	}

	var in admin.ChartInput
	if err := c.BodyParser(&in); err != nil {
		return BadRequest("Malformed JSON body")
	}

	coords, err := s.lookupCoords(c, p.id)
	if err != nil {
		return err
	}

	var result *admin.Result
	runErr := s.tenants.WithConnection(c.UserContext(), coords, func(pool *pgxpool.Pool) error {
		var innerErr error
		result, innerErr = admin.ManageGraph(c.UserContext(), pool, coords.CompanyName, in)
		return innerErr
	})
	if runErr != nil {
		return BadRequest(runErr.Error())
	}

	return c.JSON(result)
}

func (s *Server) handleRegisterUser(c *fiber.Ctx) error {
	if _, err := s.adminGate(c); err != nil {
		return err
	}

	var in admin.RegisterUserInput
	if err := c.BodyParser(&in); err != nil {
		return BadRequest("Malformed JSON body")
	}

	userID, err := s.admin.RegisterUser(c.UserContext(), in)
	if err != nil {
		return BadRequest(err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"userId": userID})
}

func (s *Server) handleListCompanies(c *fiber.Ctx) error {
	p, err := s.adminGate(c)
	if err != nil {
		return err
	}

	companies, err := s.admin.ListCompanies(c.UserContext(), p.id)
	if err != nil {
		return Internal(err)
	}

	return c.JSON(fiber.Map{"companies": companies})
}

// handleToggleCustomerPaused is a bearer-level (not admin-role-gated)
// tenant-data operation, still device-approval gated.
func (s *Server) handleToggleCustomerPaused(c *fiber.Ctx) error {
	principal, err := s.authenticate(c)
	if err != nil {
		return err
	}
	if err := s.requireApprovedDevice(c, principal.ID); err != nil {
		return err
	}

	var body struct {
		CustomerID int64 `json:"customer_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return BadRequest("Malformed JSON body")
	}
	if body.CustomerID == 0 {
		return BadRequest("customer_id is required")
	}

	coords, err := s.lookupCoords(c, principal.ID)
	if err != nil {
		return err
	}

	var paused bool
	var notFound bool
	runErr := s.tenants.WithConnection(c.UserContext(), coords, func(pool *pgxpool.Pool) error {
		var innerErr error
		paused, innerErr = dashboard.ToggleCustomerPaused(c.UserContext(), pool, body.CustomerID)
		if errors.Is(innerErr, dashboard.ErrCustomerNotFound) {
			notFound = true
			return nil
		}
		return innerErr
	})
	if runErr != nil {
		return Internal(runErr)
	}
	if notFound {
		return NotFound("Customer not found")
	}

	return c.JSON(fiber.Map{"customer_id": body.CustomerID, "paused": paused})
}
