package fingerprint

import (
	"encoding/json"
	"fmt"
)

// CanvasSize is the logical width and height every coordinate refers to.
const CanvasSize = 100

// Kind identifies a primitive type.
type Kind int

const (
	KindBackground Kind = iota
	KindCircle
	KindRotatedRect
	KindTriangle
	KindNoiseOverlay
)

var kindNames = [...]string{
	KindBackground:   "background",
	KindCircle:       "circle",
	KindRotatedRect:  "rotated_rect",
	KindTriangle:     "triangle",
	KindNoiseOverlay: "noise_overlay",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown primitive kind %q", text)
}

// Point is a position in canvas units.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Primitive is one drawable layer of a fingerprint.
type Primitive interface {
	Kind() Kind
}

// Background fills the whole canvas.
type Background struct {
	Fill string `json:"fill"`
}

// Circle is a translucent disc.
type Circle struct {
	Center  Point   `json:"center"`
	Radius  int     `json:"radius"`
	Fill    Color   `json:"fill"`
	Opacity float64 `json:"opacity"`
}

// RotatedRect is a translucent rectangle rotated about Pivot.
type RotatedRect struct {
	Origin   Point   `json:"origin"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Rotation int     `json:"rotation"`
	Pivot    Point   `json:"pivot"`
	Fill     Color   `json:"fill"`
	Opacity  float64 `json:"opacity"`
}

// Triangle is a translucent closed path through three vertices.
type Triangle struct {
	Vertices [3]Point `json:"vertices"`
	Fill     Color    `json:"fill"`
	Opacity  float64  `json:"opacity"`
}

// NoiseOverlay is the fractal noise texture laid over everything else.
type NoiseOverlay struct {
	BaseFrequency float64 `json:"base_frequency"`
	Octaves       int     `json:"octaves"`
	Opacity       float64 `json:"opacity"`
}

func (Background) Kind() Kind   { return KindBackground }
func (Circle) Kind() Kind       { return KindCircle }
func (RotatedRect) Kind() Kind  { return KindRotatedRect }
func (Triangle) Kind() Kind     { return KindTriangle }
func (NoiseOverlay) Kind() Kind { return KindNoiseOverlay }

// Descriptor is the complete fingerprint of one identity. Primitives are in
// paint order: later entries composite over earlier ones.
type Descriptor struct {
	Seed       int64
	Scheme     HashScheme
	Background Background
	Circle     Circle
	Rect       RotatedRect
	Triangle   Triangle
	Noise      NoiseOverlay
}

// Primitives returns the layers in paint order.
func (d Descriptor) Primitives() []Primitive {
	return []Primitive{d.Background, d.Circle, d.Rect, d.Triangle, d.Noise}
}

type kindedPrimitive struct {
	p Primitive
}

// MarshalJSON flattens the kind into each primitive object.
func (k kindedPrimitive) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(k.p)
	if err != nil {
		return nil, err
	}
	kind, err := json.Marshal(k.p.Kind())
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+len(kind)+10)
	out = append(out, `{"kind":`...)
	out = append(out, kind...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// MarshalJSON encodes the descriptor as seed, scheme, canvas and an ordered
// primitives array.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	layers := d.Primitives()
	primitives := make([]kindedPrimitive, len(layers))
	for i, p := range layers {
		primitives[i] = kindedPrimitive{p: p}
	}
	return json.Marshal(struct {
		Seed       int64             `json:"seed"`
		Scheme     HashScheme        `json:"hash_scheme"`
		Canvas     int               `json:"canvas"`
		Primitives []kindedPrimitive `json:"primitives"`
	}{
		Seed:       d.Seed,
		Scheme:     d.Scheme,
		Canvas:     CanvasSize,
		Primitives: primitives,
	})
}
