package fingerprint

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange is returned by DrawInt when max < min.
var ErrInvalidRange = errors.New("invalid range")

// maxDraw is the largest float64 below 1.
var maxDraw = math.Nextafter(1, 0)

// Draw returns the pseudo-random value for (seed, offset) in [0, 1).
//
// The value is the fractional part of sin(seed+offset)*10000. It depends on
// nothing but its arguments, so draws can be computed in any order.
func Draw(seed int64, offset int) float64 {
	return frac(math.Sin(float64(seed)+float64(offset)) * 10000)
}

// frac returns the fractional part of x clamped into [0, 1). For tiny
// negative x the subtraction rounds to exactly 1.
func frac(x float64) float64 {
	r := x - math.Floor(x)
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r >= 1:
		return maxDraw
	}
	return r
}

// DrawInt maps the draw for (seed, offset) onto the inclusive range [min, max].
func DrawInt(seed int64, offset, min, max int) (int, error) {
	if max < min {
		return 0, fmt.Errorf("%w: [%d, %d] at offset %d", ErrInvalidRange, min, max, offset)
	}
	// The span is computed in float64 so ranges as wide as the whole int
	// domain cannot overflow.
	span := float64(max) - float64(min) + 1
	v := float64(min) + math.Floor(Draw(seed, offset)*span)
	// A draw just below 1 can round up to max+1 after scaling.
	if v >= float64(max) {
		return max, nil
	}
	n := int(v)
	if n < min {
		n = min
	}
	return n, nil
}

func mustDrawInt(seed int64, offset, min, max int) int {
	n, err := DrawInt(seed, offset, min, max)
	if err != nil {
		panic(err)
	}
	return n
}
