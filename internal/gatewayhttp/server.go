package gatewayhttp

import (
	"github.com/gofiber/fiber/v2"

	"dashboard-gateway/internal/admin"
	"dashboard-gateway/internal/central"
	"dashboard-gateway/internal/config"
	"dashboard-gateway/internal/dashboard"
	"dashboard-gateway/internal/deviceapproval"
	"dashboard-gateway/internal/identity"
	"dashboard-gateway/internal/ratelimit"
	"dashboard-gateway/internal/telemetry"
	"dashboard-gateway/internal/tenantdb"
)

// Server holds every collaborator the endpoint handlers need: the C10
// orchestrator's wiring point.
type Server struct {
	cfg       *config.Config
	identity  *identity.Resolver
	central   *central.Directory
	tenants   *tenantdb.Registry
	devices   *deviceapproval.Service
	admin     *admin.Service
	executor  *dashboard.Executor
	limiter   *ratelimit.Limiter
	telemetry *telemetry.Manager
}

// New constructs a Server from its collaborators.
func New(
	cfg *config.Config,
	identityResolver *identity.Resolver,
	directory *central.Directory,
	tenants *tenantdb.Registry,
	devices *deviceapproval.Service,
	adminSvc *admin.Service,
	executor *dashboard.Executor,
	limiter *ratelimit.Limiter,
	telemetryMgr *telemetry.Manager,
) *Server {
	return &Server{
		cfg:       cfg,
		identity:  identityResolver,
		central:   directory,
		tenants:   tenants,
		devices:   devices,
		admin:     adminSvc,
		executor:  executor,
		limiter:   limiter,
		telemetry: telemetryMgr,
	}
}

// RegisterRoutes mounts every endpoint on app, each behind its own
// CORS/rate-limit/trace preamble.
func (s *Server) RegisterRoutes(app *fiber.App) {
	origin := s.cfg.CORS.AllowedOrigin
	defaultMax := s.cfg.RateLimit.DefaultMax

	app.Use(telemetry.TraceMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// post is a POST-only route behind CORS + rate limiting: OPTIONS gets a
	// 204 preflight, any other verb a 405, anything else the handler.
	post := func(path string, quota int, authenticated bool, handler fiber.Handler) {
		app.All(path,
			CORS(origin, "POST, OPTIONS"),
			RequireMethod(fiber.MethodPost),
			RateLimit(s.limiter, path, quotaOrDefault(quota, defaultMax), authenticated),
			handler,
		)
	}

	post("/fetchUserData", 0, true, s.handleFetchUserData)
	post("/registerLoginEvent", 20, true, s.handleRegisterLoginEvent)
	post("/checkDeviceStatus", 30, true, s.handleCheckDeviceStatus)

	// /confirmDevice is open (capability-token auth only) and unrated, and
	// serves both the GET HTML landing page and the POST JSON variant.
	app.All("/confirmDevice",
		CORS(origin, "GET, POST, OPTIONS"),
		s.handleConfirmDevice,
	)

	post("/manageTable", 0, true, s.handleManageTable)
	post("/manageGraph", 0, true, s.handleManageGraph)
	post("/registerUser", 10, true, s.handleRegisterUser)
	post("/listCompanies", 30, true, s.handleListCompanies)
	post("/toggleCustomerPaused", 10, true, s.handleToggleCustomerPaused)
}

func quotaOrDefault(quota, fallback int) int {
	if quota <= 0 {
		return fallback
	}
	return quota
}
