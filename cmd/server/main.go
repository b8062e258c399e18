package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"dashboard-gateway/internal/admin"
	"dashboard-gateway/internal/central"
	"dashboard-gateway/internal/config"
	"dashboard-gateway/internal/dashboard"
	"dashboard-gateway/internal/deviceapproval"
	"dashboard-gateway/internal/email"
	"dashboard-gateway/internal/gatewayhttp"
	"dashboard-gateway/internal/identity"
	"dashboard-gateway/internal/ratelimit"
	"dashboard-gateway/internal/telemetry"
	"dashboard-gateway/internal/tenantdb"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, central db: %s:%d/%s)", cfg.Server.Port, cfg.Central.Host, cfg.Central.Port, cfg.Central.Name)

	// 2. Connect to the central registry database
	centralPool, err := pgxpool.New(ctx, cfg.Central.ConnString())
	if err != nil {
		log.Fatalf("Failed to connect to central registry: %v", err)
	}
	defer centralPool.Close()
	log.Println("Central registry connected")

	// 3. Wire C1-C9 collaborators
	identityResolver := identity.New(cfg.Identity)
	directory := central.New(centralPool, cfg.TenantDB.DefaultPort)
	tenants := tenantdb.NewRegistry(cfg.TenantDB.PoolSize, cfg.TenantDB.IdleTimeout)
	defer tenants.Close()

	deviceStore := deviceapproval.New(centralPool)
	sender := email.NewSender(cfg.Email)
	confirmURLBase := confirmURLBase(cfg)
	devices := deviceapproval.NewService(deviceStore, sender, identityResolver, confirmURLBase)

	adminSvc := admin.NewService(directory, identityResolver)
	executor := dashboard.NewExecutor(tenants)
	limiter := ratelimit.New(time.Duration(cfg.RateLimit.WindowSeconds) * time.Second)
	telemetryMgr := telemetry.NewManager(
		cfg.Telemetry.Enabled,
		cfg.Telemetry.SamplingRate,
		cfg.Telemetry.BufferSize,
		time.Duration(cfg.Telemetry.FlushIntervalMs)*time.Millisecond,
	)
	defer telemetryMgr.Close()

	// 4. Start the idle-pool reaper
	reapCtx, cancelReap := context.WithCancel(ctx)
	defer cancelReap()
	tenants.StartReaper(reapCtx, cfg.TenantDB.ReapEvery)

	// 5. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: gatewayhttp.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 6. Register routes
	srv := gatewayhttp.New(cfg, identityResolver, directory, tenants, devices, adminSvc, executor, limiter, telemetryMgr)
	srv.RegisterRoutes(app)

	// 7. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

// confirmURLBase picks the confirmation link's origin: the configured
// override, else the device-auth fallback base.
func confirmURLBase(cfg *config.Config) string {
	if cfg.Email.ConfirmURLBase != "" {
		return cfg.Email.ConfirmURLBase
	}
	return cfg.DeviceAuth.LocalBaseURL
}
