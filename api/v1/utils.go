package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sigil/internal/avatars"
	"sigil/internal/fingerprint"
	"sigil/internal/render"
)

// generateETag creates a strong ETag from content using SHA-256
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:]) + `"` // Quoted for strong ETag
}

// identityParam returns the unescaped identity path parameter. A missing
// parameter is the empty identity. The result does not alias fiber's buffers.
func identityParam(ctx *cartridge.Context) string {
	raw := strings.Clone(ctx.Params("identity"))
	if identity, err := url.PathUnescape(raw); err == nil {
		return identity
	}
	return raw
}

// sizeQuery parses the optional size query parameter; zero means default.
func sizeQuery(ctx *cartridge.Context) (int, error) {
	raw := ctx.Query("size")
	if raw == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", render.ErrInvalidSize, raw)
	}
	if size == 0 {
		return 0, fmt.Errorf("%w: 0", render.ErrInvalidSize)
	}
	return size, nil
}

// isClientError reports whether err was caused by bad input.
func isClientError(err error) bool {
	return errors.Is(err, render.ErrInvalidSize) ||
		errors.Is(err, fingerprint.ErrInvalidPalette) ||
		errors.Is(err, avatars.ErrBatchTooLarge)
}

func errorResponse(ctx *cartridge.Context, err error) error {
	if isClientError(err) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
}
