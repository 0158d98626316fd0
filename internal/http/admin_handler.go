package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sigil/internal/avatars"
	"sigil/internal/fingerprint"
	"sigil/internal/settings"
)

// PaletteRequest replaces the palette override. An empty palette removes it.
type PaletteRequest struct {
	Palette string `json:"palette"`
}

// AdminStatsAction reports ledger totals.
func AdminStatsAction(svc *avatars.Service) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		stats, err := svc.Stats()
		if err != nil {
			ctx.Logger.Error("Failed to read avatar stats", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read stats"})
		}
		return ctx.JSON(stats)
	}
}

// AdminPaletteShowAction returns the active palette and whether it is an override.
func AdminPaletteShowAction(svc *avatars.Service) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		override, err := settings.GetAvatarPalette(svc.DB())
		if err != nil {
			ctx.Logger.Error("Failed to read palette override", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read palette"})
		}
		opts, err := svc.Options()
		if err != nil {
			ctx.Logger.Error("Failed to resolve avatar options", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read palette"})
		}
		return ctx.JSON(fiber.Map{
			"palette":  opts.Palette,
			"override": len(override) > 0,
		})
	}
}

// AdminPaletteUpdateAction stores a palette override.
func AdminPaletteUpdateAction(svc *avatars.Service) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		var req PaletteRequest
		if err := ctx.BodyParser(&req); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		var palette fingerprint.Palette
		if req.Palette != "" {
			p, err := fingerprint.ParsePalette(req.Palette)
			if err != nil {
				ctx.Logger.Warn("Invalid palette submitted", slog.Any("error", err))
				return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			palette = p
		}

		if err := svc.SetPalette(palette); err != nil {
			if errors.Is(err, fingerprint.ErrInvalidPalette) {
				return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			ctx.Logger.Error("Failed to update palette", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update palette"})
		}

		ctx.Logger.Info("Avatar palette updated", slog.Int("colors", len(palette)))
		return ctx.JSON(fiber.Map{"palette": palette, "override": len(palette) > 0})
	}
}

// AdminCachePurgeAction drops every cached rendering.
func AdminCachePurgeAction(svc *avatars.Service) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		rowsAffected, err := svc.PurgeCache()
		if err != nil {
			ctx.Logger.Error("Failed to purge caches", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to purge caches"})
		}

		ctx.Logger.Info("Caches purged successfully", slog.Int64("rows_deleted", rowsAffected))
		return ctx.JSON(fiber.Map{"purged": true, "rows_deleted": rowsAffected})
	}
}
