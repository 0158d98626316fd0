package v1

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sigil/internal/avatars"
	"sigil/internal/fingerprint"
)

// FingerprintResponse is a descriptor together with the palette it was
// composed from.
type FingerprintResponse struct {
	Identity    string                 `json:"identity"`
	Alias       string                 `json:"alias"`
	Palette     fingerprint.Palette    `json:"palette"`
	Fingerprint fingerprint.Descriptor `json:"fingerprint"`
}

// SeedResponse is the derived seed of one identity.
type SeedResponse struct {
	Identity   string `json:"identity"`
	Seed       int64  `json:"seed"`
	HashScheme string `json:"hash_scheme"`
	Alias      string `json:"alias"`
}

// BatchRequest lists identities to compose in one call.
type BatchRequest struct {
	Identities []string `json:"identities"`
}

// GetFingerprintAction returns the descriptor for the identity in the path.
func GetFingerprintAction(svc *avatars.Service) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		identity := identityParam(ctx)

		opts, err := svc.Options()
		if err != nil {
			ctx.Logger.Error("Failed to resolve avatar options", slog.Any("error", err))
			return errorResponse(ctx, err)
		}
		composer, err := fingerprint.NewComposer(opts)
		if err != nil {
			ctx.Logger.Error("Failed to build composer", slog.Any("error", err))
			return errorResponse(ctx, err)
		}

		d := composer.Compose(identity)
		return ctx.JSON(FingerprintResponse{
			Identity:    identity,
			Alias:       fingerprint.Alias(d.Seed),
			Palette:     opts.Palette,
			Fingerprint: d,
		})
	}
}

// GetSeedAction returns the seed for the identity in the path.
func GetSeedAction(svc *avatars.Service) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		identity := identityParam(ctx)

		seed, scheme, err := svc.Seed(identity)
		if err != nil {
			ctx.Logger.Error("Failed to derive seed", slog.Any("error", err))
			return errorResponse(ctx, err)
		}

		return ctx.JSON(SeedResponse{
			Identity:   identity,
			Seed:       seed,
			HashScheme: string(scheme),
			Alias:      fingerprint.Alias(seed),
		})
	}
}

// PostFingerprintBatchAction composes every identity in the request body and
// returns the descriptors in request order.
func PostFingerprintBatchAction(svc *avatars.Service) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		var req BatchRequest
		if err := ctx.BodyParser(&req); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Identities == nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "identities is required"})
		}

		descriptors, err := svc.ComposeBatch(ctx.UserContext(), req.Identities)
		if err != nil {
			if !isClientError(err) {
				ctx.Logger.Error("Failed to compose batch",
					slog.Int("identities", len(req.Identities)),
					slog.Any("error", err))
			}
			return errorResponse(ctx, err)
		}

		return ctx.JSON(fiber.Map{"fingerprints": descriptors})
	}
}
