package hologram

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"
)

// MinDistance is the smallest source-to-point distance used by the field
// model, in mm. Points closer to a source than this (including a point that
// coincides with it) are evaluated as if they were MinDistance away, so the
// field stays finite near sources instead of diverging to ±Inf or NaN.
const MinDistance = 1e-6

// Directivity returns the relative radiation of a source at angle theta
// (radians) off its radiating axis. A nil Directivity is omnidirectional.
type Directivity func(theta float64) float64

// Piston returns the far-field directivity of a baffled circular piston,
// 2·J1(ka·sinθ)/(ka·sinθ), where ka is the wavenumber times the piston radius.
func Piston(ka float64) Directivity {
	return func(theta float64) float64 {
		x := ka * math.Sin(theta)
		if math.Abs(x) < 1e-9 {
			return 1
		}
		return 2 * math.J1(x) / x
	}
}

// FieldType selects which scalar is derived from the complex field.
type FieldType int

const (
	// Pressure is the pressure amplitude |p|.
	Pressure FieldType = iota
	// Power is the squared pressure amplitude |p|².
	Power
	// RealPressure is the instantaneous pressure Re(p) at zero time.
	RealPressure
)

func (t FieldType) String() string {
	switch t {
	case Pressure:
		return "pressure"
	case Power:
		return "power"
	case RealPressure:
		return "real pressure"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

func (t FieldType) valid() bool { return t >= Pressure && t <= RealPressure }

// Scalar reduces a complex field value to the scalar selected by t.
func (t FieldType) Scalar(p complex128) float64 {
	switch t {
	case Power:
		re, im := real(p), imag(p)
		return re*re + im*im
	case RealPressure:
		return real(p)
	}
	return cmplx.Abs(p)
}

// propagator is the unit-drive spherical wave model shared by field
// evaluation and the optimizers' transfer matrices.
type propagator struct {
	k      float64
	dir    Directivity
	normal r3.Vec
}

func (a *Array) propagator(k float64) propagator {
	n := a.Normal
	if n == (r3.Vec{}) {
		n = r3.Vec{Z: 1}
	}
	return propagator{k: k, dir: a.Directivity, normal: n}
}

// transfer returns D(θ)·exp(i·k·r)/r for a unit source at src observed at p.
func (g propagator) transfer(src, p r3.Vec) complex128 {
	d := r3.Sub(p, src)
	dist := r3.Norm(d)
	r := math.Max(dist, MinDistance)
	scale := 1 / r
	if g.dir != nil {
		theta := 0.0
		if dist > 0 {
			theta = math.Acos(clamp(r3.Cos(d, g.normal), -1, 1))
		}
		scale *= g.dir(theta)
	}
	s, c := math.Sincos(g.k * r)
	return complex(scale*c, scale*s)
}

// field sums the contribution of every source at p. It performs no checks.
func (a *Array) field(g propagator, p r3.Vec) complex128 {
	var sum complex128
	for _, s := range a.sources {
		if s.Amp == 0 {
			continue
		}
		sum += g.transfer(s.Pos, p) * cmplx.Rect(s.Amp, s.Phase)
	}
	return sum
}

// FieldAt returns the complex field radiated by the array at p:
//
//	Σᵢ aᵢ·D(θᵢ)·exp(i(k·rᵢ + φᵢ))/rᵢ,  rᵢ = max(|p − posᵢ|, MinDistance)
//
// The array is never modified. An empty array yields 0.
func (a *Array) FieldAt(p r3.Vec) (complex128, error) {
	if !finiteVec(p) {
		return cmplx.NaN(), fmt.Errorf("%w: %v", ErrNonFinitePoint, p)
	}
	if a.InUse() {
		return 0, ErrExclusiveAccess
	}
	return a.field(a.propagator(a.waveNumber), p), nil
}

// ScalarAt returns FieldAt reduced to the scalar selected by t.
func (a *Array) ScalarAt(p r3.Vec, t FieldType) (float64, error) {
	if !t.valid() {
		return 0, fmt.Errorf("%w: unknown field type %d", ErrConfiguration, int(t))
	}
	f, err := a.FieldAt(p)
	if err != nil {
		return math.NaN(), err
	}
	return t.Scalar(f), nil
}

func finiteVec(p r3.Vec) bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
