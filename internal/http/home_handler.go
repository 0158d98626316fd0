package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sigil/internal/config"
	"sigil/internal/fingerprint"
)

// Version is set at build time.
var Version = "dev"

// HomeIndexAction describes the service and its endpoints.
func HomeIndexAction(ctx *cartridge.Context) error {
	cfg, _ := ctx.Config.(*config.Config)
	name := "sigil"
	scheme := string(fingerprint.HashInt32)
	if cfg != nil {
		name = cfg.AppName
		scheme = cfg.AvatarHashScheme
	}

	return ctx.JSON(fiber.Map{
		"name":        name,
		"version":     Version,
		"hash_scheme": scheme,
		"canvas":      fingerprint.CanvasSize,
		"endpoints": []string{
			"GET /avatars/:identity",
			"GET /api/v1/fingerprints/:identity",
			"GET /api/v1/seeds/:identity",
			"POST /api/v1/fingerprints/batch",
		},
	})
}
