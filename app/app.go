// Package app is the importable surface of sigil for programs that embed the
// avatar server or need fingerprints without going through HTTP.
package app

import (
	"github.com/karloscodes/cartridge"

	"sigil/internal"
	"sigil/internal/avatars"
	"sigil/internal/config"
	"sigil/internal/database"
	"sigil/internal/fingerprint"
	"sigil/internal/render"
	"sigil/pkg/extension"
)

// Re-export core types
type (
	Application = internal.Application
	Config      = config.Config
	DBManager   = database.DBManager
	Service     = avatars.Service
	Stats       = avatars.Stats
)

// Re-export fingerprint types
type (
	Descriptor    = fingerprint.Descriptor
	Options       = fingerprint.Options
	Palette       = fingerprint.Palette
	Color         = fingerprint.Color
	HashScheme    = fingerprint.HashScheme
	Composer      = fingerprint.Composer
	RenderOptions = render.Options
)

// Re-export hash schemes
const (
	HashInt32      = fingerprint.HashInt32
	HashECMAScript = fingerprint.HashECMAScript
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	return config.GetConfig()
}

// NewApp creates a new application with default routes
func NewApp() (*Application, error) {
	return internal.NewApp()
}

// NewAppWithConfig creates a new application from cfg
func NewAppWithConfig(cfg *Config) (*Application, error) {
	return internal.NewAppWithConfig(cfg)
}

// RegisterRoutes adds routes that are mounted after sigil's own. Call it
// before NewApp.
func RegisterRoutes(r func(srv *cartridge.Server)) {
	extension.RegisterRoutes(r)
}

// MountAppRoutes mounts sigil's routes on a server the caller owns.
func MountAppRoutes(srv *cartridge.Server) {
	internal.MountAppRoutes(srv)
}

// Fingerprint functions
var (
	DefaultOptions = fingerprint.DefaultOptions
	DefaultPalette = fingerprint.DefaultPalette
	NewComposer    = fingerprint.NewComposer
	ParsePalette   = fingerprint.ParsePalette
	DeriveSeed     = fingerprint.DeriveSeed
	Compose        = fingerprint.Compose
)

// RenderSVG renders the default avatar for identity at size pixels.
func RenderSVG(identity string, size int) ([]byte, error) {
	opts := render.DefaultOptions()
	opts.Size = size
	return render.SVG(fingerprint.Compose(identity), opts)
}
