package hologram

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// GridLayout returns an nx × ny rectangular array of silent sources in the
// plane z, centred on the z axis, with the given pitch in mm. Sources are
// ordered with x varying fastest.
func GridLayout(nx, ny int, pitch, z float64) (*Array, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("%w: layout %d×%d must have at least one source per side", ErrConfiguration, nx, ny)
	}
	if !(pitch > 0) || !isFinite(pitch) || !isFinite(z) {
		return nil, fmt.Errorf("%w: pitch %v and plane %v must be finite, pitch positive", ErrConfiguration, pitch, z)
	}
	xs := centredSpan(nx, pitch)
	ys := centredSpan(ny, pitch)
	arr := NewArray(0)
	for _, y := range ys {
		for _, x := range xs {
			arr.Add(Source{Pos: r3.Vec{X: x, Y: y, Z: z}})
		}
	}
	return arr, nil
}

// centredSpan returns n evenly spaced values with the given spacing,
// symmetric about zero.
func centredSpan(n int, pitch float64) []float64 {
	v := make([]float64, n)
	if n == 1 {
		return v
	}
	half := pitch * float64(n-1) / 2
	return floats.Span(v, -half, half)
}
