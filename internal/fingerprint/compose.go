package fingerprint

import (
	"errors"
	"fmt"
)

// Opacity holds the fixed opacity of each translucent layer.
type Opacity struct {
	Circle   float64
	Rect     float64
	Triangle float64
	Noise    float64
}

// Noise configures the fractal noise overlay.
type Noise struct {
	BaseFrequency float64
	Octaves       int
}

// Options are the build-time constants of a fingerprint. None of them is
// derived from the identity.
type Options struct {
	Palette    Palette
	Background string
	Opacity    Opacity
	Noise      Noise
	Scheme     HashScheme
}

// DefaultOptions returns the options every avatar has been drawn with.
func DefaultOptions() Options {
	return Options{
		Palette:    DefaultPalette,
		Background: "#111",
		Opacity: Opacity{
			Circle:   0.2,
			Rect:     0.3,
			Triangle: 0.4,
			Noise:    0.15,
		},
		Noise: Noise{
			BaseFrequency: 0.8,
			Octaves:       3,
		},
		Scheme: HashInt32,
	}
}

// Validate reports the first invalid option.
func (o Options) Validate() error {
	if err := o.Palette.Validate(); err != nil {
		return err
	}
	if !hexColorPattern.MatchString(o.Background) {
		return fmt.Errorf("%w: background %q", ErrInvalidPalette, o.Background)
	}
	for name, v := range map[string]float64{
		"circle":   o.Opacity.Circle,
		"rect":     o.Opacity.Rect,
		"triangle": o.Opacity.Triangle,
		"noise":    o.Opacity.Noise,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s opacity %v outside [0, 1]", name, v)
		}
	}
	if o.Noise.BaseFrequency <= 0 {
		return errors.New("noise base frequency must be positive")
	}
	if o.Noise.Octaves < 1 {
		return errors.New("noise octaves must be at least 1")
	}
	if _, err := ParseHashScheme(string(o.Scheme)); err != nil {
		return err
	}
	return nil
}

// span is one draw: the offset it is keyed by and the inclusive range it maps to.
type span struct {
	offset   int
	min, max int
}

// Offsets are bound to their attribute; reusing or reordering them changes
// every fingerprint.
var (
	circleX  = span{1, 20, 80}
	circleY  = span{2, 20, 80}
	circleR  = span{3, 20, 40}
	rectX    = span{4, 10, 60}
	rectY    = span{5, 10, 60}
	rectW    = span{6, 30, 60}
	rectH    = span{7, 30, 60}
	rectRot  = span{8, 0, 90}
	triangle = [6]span{
		{9, 10, 90}, {10, 10, 90},
		{11, 10, 90}, {12, 10, 90},
		{13, 10, 90}, {14, 10, 90},
	}
)

func (s span) draw(seed int64) int {
	return mustDrawInt(seed, s.offset, s.min, s.max)
}

// Composer builds descriptors with a fixed set of options.
type Composer struct {
	opts Options
}

// NewComposer validates opts and returns a composer using them.
func NewComposer(opts Options) (*Composer, error) {
	if opts.Scheme == "" {
		opts.Scheme = HashInt32
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("fingerprint: invalid options: %w", err)
	}
	return &Composer{opts: opts}, nil
}

// Options returns the composer's options.
func (c *Composer) Options() Options {
	return c.opts
}

// Seed derives the seed for identity under the composer's hash scheme.
func (c *Composer) Seed(identity string) int64 {
	seed, err := DeriveSeedWith(c.opts.Scheme, identity)
	if err != nil {
		// Scheme was validated in NewComposer.
		panic(err)
	}
	return seed
}

// Compose returns the fingerprint of identity.
func (c *Composer) Compose(identity string) Descriptor {
	return c.ComposeSeed(c.Seed(identity))
}

// ComposeSeed returns the fingerprint for an already derived seed.
func (c *Composer) ComposeSeed(seed int64) Descriptor {
	o := c.opts
	d := Descriptor{
		Seed:       seed,
		Scheme:     o.Scheme,
		Background: Background{Fill: o.Background},
		Circle: Circle{
			Center:  Point{X: circleX.draw(seed), Y: circleY.draw(seed)},
			Radius:  circleR.draw(seed),
			Fill:    o.Palette.Pick(seed, 0),
			Opacity: o.Opacity.Circle,
		},
		Rect: RotatedRect{
			Origin:   Point{X: rectX.draw(seed), Y: rectY.draw(seed)},
			Width:    rectW.draw(seed),
			Height:   rectH.draw(seed),
			Rotation: rectRot.draw(seed),
			Pivot:    Point{X: CanvasSize / 2, Y: CanvasSize / 2},
			Fill:     o.Palette.Pick(seed, 1),
			Opacity:  o.Opacity.Rect,
		},
		Triangle: Triangle{
			Fill:    o.Palette.Pick(seed, 2),
			Opacity: o.Opacity.Triangle,
		},
		Noise: NoiseOverlay{
			BaseFrequency: o.Noise.BaseFrequency,
			Octaves:       o.Noise.Octaves,
			Opacity:       o.Opacity.Noise,
		},
	}
	for i := range d.Triangle.Vertices {
		d.Triangle.Vertices[i] = Point{
			X: triangle[2*i].draw(seed),
			Y: triangle[2*i+1].draw(seed),
		}
	}
	return d
}

var defaultComposer = &Composer{opts: DefaultOptions()}

// Compose returns the fingerprint of identity with DefaultOptions.
func Compose(identity string) Descriptor {
	return defaultComposer.Compose(identity)
}
