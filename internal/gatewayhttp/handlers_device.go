package gatewayhttp

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"dashboard-gateway/internal/deviceapproval"
)

type loginEventBody struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	UserAgent  string `json:"userAgent"`
	Locale     string `json:"locale"`
	Timezone   string `json:"timezone"`
	Screen     string `json:"screen"`
	Resend     bool   `json:"resend"`
}

type loginResultBody struct {
	Status               deviceapproval.Status   `json:"status"`
	RequiresConfirmation bool                    `json:"requiresConfirmation"`
	Device               *deviceapproval.DeviceRecord `json:"device,omitempty"`
}

func (s *Server) loginInputFrom(c *fiber.Ctx, body loginEventBody) deviceapproval.LoginInput {
	return deviceapproval.LoginInput{
		DeviceID:   body.DeviceID,
		DeviceName: body.DeviceName,
		UserAgent:  body.UserAgent,
		IP:         clientIP(c),
		Locale:     body.Locale,
		Timezone:   body.Timezone,
		Screen:     body.Screen,
		Resend:     body.Resend,
	}
}

// handleRegisterLoginEvent is the device-lifecycle entry point: it drives
// the absent/pending/approved state machine for the caller's device.
func (s *Server) handleRegisterLoginEvent(c *fiber.Ctx) error {
	principal, err := s.authenticate(c)
	if err != nil {
		return err
	}

	var body loginEventBody
	if err := c.BodyParser(&body); err != nil {
		return BadRequest("Malformed JSON body")
	}
	if body.DeviceID == "" {
		return BadRequest("deviceId is required")
	}

	result, err := s.devices.Login(c.UserContext(), principal.ID, principal.Email, s.loginInputFrom(c, body))
	if err != nil {
		return Internal(err)
	}

	return c.JSON(loginResultBody{
		Status:               result.Status,
		RequiresConfirmation: result.RequiresConfirmation,
		Device:               result.Device,
	})
}

// handleCheckDeviceStatus is a thinner variant of the same state machine
// call, used by clients polling whether their pending device has since
// been confirmed.
func (s *Server) handleCheckDeviceStatus(c *fiber.Ctx) error {
	principal, err := s.authenticate(c)
	if err != nil {
		return err
	}

	var body struct {
		DeviceID string `json:"deviceId"`
		Resend   bool   `json:"resend"`
	}
	if err := c.BodyParser(&body); err != nil {
		return BadRequest("Malformed JSON body")
	}
	if body.DeviceID == "" {
		return BadRequest("deviceId is required")
	}

	result, err := s.devices.Login(c.UserContext(), principal.ID, principal.Email, deviceapproval.LoginInput{
		DeviceID: body.DeviceID,
		IP:       clientIP(c),
		Resend:   body.Resend,
	})
	if err != nil {
		return Internal(err)
	}

	return c.JSON(loginResultBody{
		Status:               result.Status,
		RequiresConfirmation: result.RequiresConfirmation,
		Device:               result.Device,
	})
}

// handleConfirmDevice serves both verbs of the open confirmation endpoint:
// GET (browser landing page, capability token in the query string) and
// POST (JSON API, capability token in the body).
func (s *Server) handleConfirmDevice(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodGet:
		return s.confirmDeviceGET(c)
	case fiber.MethodPost:
		return s.confirmDevicePOST(c)
	case fiber.MethodOptions:
		return c.SendStatus(fiber.StatusNoContent)
	default:
		return c.Status(fiber.StatusMethodNotAllowed).SendString("Method Not Allowed")
	}
}

func (s *Server) confirmDeviceGET(c *fiber.Ctx) error {
	token := c.Query("token")
	c.Set("Content-Type", "text/html; charset=utf-8")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).SendString(confirmPage(false, "Link de confirmação inválido."))
	}

	if _, err := s.devices.ConfirmByToken(c.UserContext(), token); err != nil {
		if errors.Is(err, deviceapproval.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).SendString(confirmPage(false, "Token não encontrado ou já utilizado."))
		}
		return c.Status(fiber.StatusInternalServerError).SendString(confirmPage(false, "Erro ao confirmar dispositivo."))
	}

	return c.Status(fiber.StatusOK).SendString(confirmPage(true, "Dispositivo confirmado com sucesso."))
}

func (s *Server) confirmDevicePOST(c *fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return BadRequest("Malformed JSON body")
	}
	if body.Token == "" {
		return BadRequest("token is required")
	}

	if _, err := s.devices.ConfirmByToken(c.UserContext(), body.Token); err != nil {
		if errors.Is(err, deviceapproval.ErrNotFound) {
			return NotFound("Token not found")
		}
		return Internal(err)
	}

	return c.JSON(fiber.Map{"status": "approved"})
}
