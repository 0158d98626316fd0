package fingerprint

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPalette is returned when a palette string cannot be parsed.
var ErrInvalidPalette = errors.New("invalid palette")

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// IsHexColor reports whether s is a "#rgb" or "#rrggbb" color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// Color is one palette entry.
type Color struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Hex  string `json:"hex" yaml:"hex"`
}

// Palette is the ordered list of fill colors shapes are picked from.
type Palette []Color

// DefaultPalette is the seven color palette every avatar has used so far.
// Reordering it changes every fingerprint.
var DefaultPalette = Palette{
	{Name: "emerald", Hex: "#10B981"},
	{Name: "blue", Hex: "#3B82F6"},
	{Name: "indigo", Hex: "#6366F1"},
	{Name: "violet", Hex: "#8B5CF6"},
	{Name: "pink", Hex: "#EC4899"},
	{Name: "amber", Hex: "#F59E0B"},
	{Name: "cyan", Hex: "#06B6D4"},
}

// Pick returns palette[(seed+shift) mod len], always a valid index.
func (p Palette) Pick(seed int64, shift int) Color {
	n := int64(len(p))
	idx := (seed%n + int64(shift)%n) % n
	if idx < 0 {
		idx += n
	}
	return p[idx]
}

// Validate checks that the palette is non-empty and every entry is a hex color.
func (p Palette) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: no colors", ErrInvalidPalette)
	}
	for i, c := range p {
		if !hexColorPattern.MatchString(c.Hex) {
			return fmt.Errorf("%w: entry %d has color %q", ErrInvalidPalette, i, c.Hex)
		}
	}
	return nil
}

// String renders the palette in the form accepted by ParsePalette.
func (p Palette) String() string {
	parts := make([]string, len(p))
	for i, c := range p {
		if c.Name != "" {
			parts[i] = c.Name + "=" + c.Hex
		} else {
			parts[i] = c.Hex
		}
	}
	return strings.Join(parts, ",")
}

// ParsePalette parses a comma separated list of "#hex" or "name=#hex" entries.
func ParsePalette(s string) (Palette, error) {
	var p Palette
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		var c Color
		if name, hex, ok := strings.Cut(field, "="); ok {
			c = Color{Name: strings.TrimSpace(name), Hex: strings.TrimSpace(hex)}
		} else {
			c = Color{Hex: field}
		}
		p = append(p, c)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
