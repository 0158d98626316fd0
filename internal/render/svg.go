// Package render turns fingerprint descriptors into SVG documents.
package render

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"text/template"

	"sigil/internal/fingerprint"
)

//go:embed avatar.svg.tmpl
var avatarTemplate string

var svgTemplate = template.Must(template.New("avatar.svg").Parse(avatarTemplate))

// ErrInvalidSize is returned when the requested pixel size is out of bounds.
var ErrInvalidSize = errors.New("invalid avatar size")

const (
	DefaultSize         = 64
	DefaultMaxSize      = 1024
	DefaultCornerRadius = 16
	DefaultFrame        = "#0A0A0A"
)

// Options control how a descriptor is laid out as an image.
type Options struct {
	// Size is the rendered width and height in pixels.
	Size int
	// MaxSize caps Size; zero means DefaultMaxSize.
	MaxSize int
	// CornerRadius rounds the avatar frame, in pixels.
	CornerRadius float64
	// Frame fills the rounded frame behind the artwork; empty draws no frame.
	Frame string
}

// DefaultOptions matches the dashboard avatar: 64px on a dark frame with 16px
// rounded corners.
func DefaultOptions() Options {
	return Options{
		Size:         DefaultSize,
		MaxSize:      DefaultMaxSize,
		CornerRadius: DefaultCornerRadius,
		Frame:        DefaultFrame,
	}
}

// Validate checks the size bounds.
func (o Options) Validate() error {
	maxSize := o.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if o.Size < 1 || o.Size > maxSize {
		return fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidSize, o.Size, maxSize)
	}
	if o.CornerRadius < 0 {
		return fmt.Errorf("%w: negative corner radius", ErrInvalidSize)
	}
	if o.Frame != "" && !fingerprint.IsHexColor(o.Frame) {
		return fmt.Errorf("%w: frame %q", fingerprint.ErrInvalidPalette, o.Frame)
	}
	return nil
}

type svgData struct {
	fingerprint.Descriptor
	Size         int
	ClipID       string
	FilterID     string
	CornerRadius string
	Frame        string
}

// SVG renders d as a standalone SVG document. The output is byte-for-byte
// stable for the same descriptor and options.
func SVG(d fingerprint.Descriptor, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	// The frame radius is given in pixels but the drawing uses canvas units.
	radius := opts.CornerRadius * fingerprint.CanvasSize / float64(opts.Size)
	if radius > fingerprint.CanvasSize/2 {
		radius = fingerprint.CanvasSize / 2
	}

	data := svgData{
		Descriptor:   d,
		Size:         opts.Size,
		ClipID:       fmt.Sprintf("sigil-clip-%d", d.Seed),
		FilterID:     fmt.Sprintf("sigil-noise-%d", d.Seed),
		CornerRadius: strconv.FormatFloat(radius, 'f', -1, 64),
		Frame:        opts.Frame,
	}

	var buf bytes.Buffer
	if err := svgTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render: failed to execute avatar template: %w", err)
	}
	return buf.Bytes(), nil
}
