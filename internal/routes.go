package internal

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "sigil/api/v1"
	"sigil/internal/avatars"
	"sigil/internal/config"
	"sigil/internal/http"
	"sigil/internal/http/middleware"
	"sigil/internal/jobs"
	"sigil/pkg/extension"
)

// publicCORSConfig lets any origin embed avatars and read fingerprints.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,HEAD,POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
}

// MountAppRoutes mounts every route on a server the caller owns, with an
// avatar service built from the server's database and the global config. The
// ledger flush and cleanup jobs for that service start with it and stop when
// the server shuts down.
func MountAppRoutes(srv *cartridge.Server) {
	if _, err := mountAppRoutes(srv); err != nil {
		srv.GetLogger().Error("Failed to create avatar service, routes not mounted", slog.Any("error", err))
	}
}

// mountAppRoutes mounts the routes and returns the running scheduler that
// flushes the service's served buffer.
func mountAppRoutes(srv *cartridge.Server) (*jobs.Scheduler, error) {
	cfg := config.GetConfig()
	dbManager := srv.GetDBManager()
	logger := srv.GetLogger()

	svc, err := avatars.NewService(cfg, dbManager.GetConnection(), logger)
	if err != nil {
		return nil, err
	}
	NewRouteMounter(cfg, svc)(srv)

	scheduler := jobs.NewScheduler(dbManager, svc, logger, cfg)
	if err := scheduler.Start(); err != nil {
		return nil, err
	}
	srv.App().Hooks().OnShutdown(func() error {
		scheduler.Stop()
		return nil
	})
	return scheduler, nil
}

// NewRouteMounter returns a route mount function bound to svc.
func NewRouteMounter(cfg *config.Config, svc *avatars.Service) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		mountRoutes(srv, cfg, svc)
	}
}

func mountRoutes(srv *cartridge.Server, cfg *config.Config, svc *avatars.Service) {
	// Rate limiting only applies in production; it would get in the way of
	// development and tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Avatars are requested once per image on a page, so the limit is generous.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(600),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	batchRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(60),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	adminRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	batchConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{batchRateLimiter},
		CORSConfig:         publicCORSConfig,
	}

	adminConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware: []fiber.Handler{
			adminRateLimiter,
			middleware.AdminAPIKeyAuth(cfg.AdminAPIKey, srv.GetLogger()),
		},
	}

	noContent := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === ROOT ROUTES ===
	srv.Get("/", http.HomeIndexAction)
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === AVATARS ===
	avatarAction := v1.GetAvatarAction(svc)
	srv.Get("/avatars/:identity?", avatarAction, publicConfig)
	srv.Head("/avatars/:identity?", avatarAction, publicConfig)
	srv.Options("/avatars/:identity?", noContent, publicConfig)

	// === PUBLIC API ROUTES ===
	srv.Post("/api/v1/fingerprints/batch", v1.PostFingerprintBatchAction(svc), batchConfig)
	srv.Options("/api/v1/fingerprints/batch", noContent, batchConfig)
	srv.Get("/api/v1/fingerprints/:identity?", v1.GetFingerprintAction(svc), publicConfig)
	srv.Get("/api/v1/seeds/:identity?", v1.GetSeedAction(svc), publicConfig)

	// === ADMIN API ROUTES ===
	srv.Get("/api/v1/admin/stats", http.AdminStatsAction(svc), adminConfig)
	srv.Get("/api/v1/admin/palette", http.AdminPaletteShowAction(svc), adminConfig)
	srv.Post("/api/v1/admin/palette", http.AdminPaletteUpdateAction(svc), adminConfig)
	srv.Post("/api/v1/admin/cache/purge", http.AdminCachePurgeAction(svc), adminConfig)

	// === EMBEDDER ROUTES ===
	extension.ApplyRoutes(srv)
}
