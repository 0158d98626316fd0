package v1

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sigil/internal/avatars"
	"sigil/internal/tracing"
)

// GetAvatarAction serves the SVG avatar for the identity in the path. Only
// GET requests count as served.
func GetAvatarAction(svc *avatars.Service) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		traceCtx, span, requestID := tracing.StartRequestSpan(ctx.UserContext(), "GET /avatars")
		ctx.Set("X-Request-Id", requestID)

		size, err := sizeQuery(ctx)
		if err != nil {
			span.SetStatusFromHTTPCode(fiber.StatusBadRequest)
			tracing.EndSpan(span, err)
			return errorResponse(ctx, err)
		}

		// HEAD requests are checks, not views, so they stay out of the ledger.
		render := svc.SVG
		if ctx.Method() == fiber.MethodHead {
			render = svc.Preview
		}
		content, err := render(traceCtx, identityParam(ctx), size)
		if err != nil {
			if !isClientError(err) {
				ctx.Logger.Error("Failed to render avatar", slog.Any("error", err))
			}
			tracing.EndSpan(span, err)
			return errorResponse(ctx, err)
		}

		etag := generateETag(content)
		ctx.Set("ETag", etag)
		ctx.Set("Cache-Control", "public, max-age=86400, immutable")
		ctx.Set("Cross-Origin-Resource-Policy", "cross-origin")

		if ctx.Get("If-None-Match") == etag {
			ctx.Logger.Debug("ETag match, returning 304",
				slog.String("etag", etag),
				slog.String("path", ctx.Path()))
			span.SetStatusFromHTTPCode(fiber.StatusNotModified)
			tracing.EndSpan(span, nil)
			return ctx.Status(fiber.StatusNotModified).Send(nil)
		}

		ctx.Set("Content-Type", "image/svg+xml")
		span.SetStatusFromHTTPCode(fiber.StatusOK)
		tracing.EndSpan(span, nil)
		return ctx.Send(content)
	}
}
