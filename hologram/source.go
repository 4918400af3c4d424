// Package hologram computes multi-focus phased-array holograms.
//
// An Array holds the geometry and drive state (amplitude, phase) of a set of
// point-like wave sources sharing one wavenumber. The field radiated by the
// array is a superposition of spherical waves and can be evaluated at single
// points (FieldAt) or sampled over regular grids (GridBuilder). Six
// optimizers (GreedyBruteForce, Horn, Long, LM, GD and GSPAT) rewrite the
// drive state in place so that the field approaches a set of target amplitudes at
// a set of focal points.
//
// All lengths are in millimetres and all angles in radians.
package hologram

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultWavelength is the wavelength of 40 kHz ultrasound in air, in mm.
const DefaultWavelength = 8.5

// Source is a single wave source. The zero value is a silent source at the origin.
type Source struct {
	Pos   r3.Vec  // Position in mm
	Amp   float64 // Normalized drive amplitude, [0, AmpMax]
	Phase float64 // Drive phase in radians, [0, 2π)
}

// Array is an ordered set of wave sources sharing one wavenumber.
//
// The index order of the sources is significant: optimizers report and
// visit sources by index. An Array must not be copied after first use.
type Array struct {
	sources    []Source
	waveNumber float64
	ampMax     float64

	// Directivity scales the radiation of every source by the angle between
	// Normal and the direction of the observation point. Nil means omnidirectional.
	Directivity Directivity
	// Normal is the radiating axis shared by all sources. The zero vector means +z.
	Normal r3.Vec

	inUse atomic.Bool
}

// NewArray returns an array of n zero-value sources at the default wavelength.
func NewArray(n int) *Array {
	if n < 0 {
		n = 0
	}
	return &Array{
		sources:    make([]Source, n),
		waveNumber: 2 * math.Pi / DefaultWavelength,
		ampMax:     1,
	}
}

// NewArrayFromSources returns an array holding copies of the given sources.
// Amplitudes and phases are brought into their canonical ranges.
func NewArrayFromSources(sources ...Source) *Array {
	a := NewArray(0)
	a.Add(sources...)
	return a
}

// Len returns the number of sources.
func (a *Array) Len() int { return len(a.sources) }

// Add appends sources to the array.
func (a *Array) Add(sources ...Source) {
	for _, s := range sources {
		s.Amp = clamp(s.Amp, 0, a.ampMax)
		s.Phase = WrapPhase(s.Phase)
		a.sources = append(a.sources, s)
	}
}

// Resize grows the array with zero-value sources or truncates it to n sources.
func (a *Array) Resize(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(a.sources) {
		a.sources = a.sources[:n]
		return
	}
	a.sources = append(a.sources, make([]Source, n-len(a.sources))...)
}

// WaveNumber returns k = 2π/λ in rad/mm.
func (a *Array) WaveNumber() float64 { return a.waveNumber }

// Wavelength returns λ in mm.
func (a *Array) Wavelength() float64 { return 2 * math.Pi / a.waveNumber }

// SetWaveNumber sets k. It must be positive and finite.
func (a *Array) SetWaveNumber(k float64) error {
	if !(k > 0) || math.IsInf(k, 0) {
		return fmt.Errorf("%w: wavenumber %v must be positive and finite", ErrConfiguration, k)
	}
	a.waveNumber = k
	return nil
}

// SetWavelength sets k from a wavelength in mm.
func (a *Array) SetWavelength(lambda float64) error {
	if !(lambda > 0) || math.IsInf(lambda, 0) {
		return fmt.Errorf("%w: wavelength %v must be positive and finite", ErrConfiguration, lambda)
	}
	a.waveNumber = 2 * math.Pi / lambda
	return nil
}

// AmpMax returns the upper bound applied to every source amplitude.
func (a *Array) AmpMax() float64 { return a.ampMax }

// SetAmpMax changes the amplitude bound and re-clamps every source.
func (a *Array) SetAmpMax(m float64) error {
	if !(m > 0) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: maximum amplitude %v must be positive and finite", ErrConfiguration, m)
	}
	a.ampMax = m
	for i := range a.sources {
		a.sources[i].Amp = clamp(a.sources[i].Amp, 0, m)
	}
	return nil
}

// Source returns a copy of source i.
func (a *Array) Source(i int) Source { return a.sources[i] }

// Sources returns a copy of all sources in index order.
func (a *Array) Sources() []Source {
	out := make([]Source, len(a.sources))
	copy(out, a.sources)
	return out
}

// Position returns the position of source i.
func (a *Array) Position(i int) r3.Vec { return a.sources[i].Pos }

// SetPosition moves source i.
func (a *Array) SetPosition(i int, p r3.Vec) { a.sources[i].Pos = p }

// Amplitude returns the drive amplitude of source i.
func (a *Array) Amplitude(i int) float64 { return a.sources[i].Amp }

// SetAmplitude sets the drive amplitude of source i, clamped to [0, AmpMax].
// NaN is stored as 0.
func (a *Array) SetAmplitude(i int, amp float64) { a.sources[i].Amp = clamp(amp, 0, a.ampMax) }

// Phase returns the drive phase of source i in [0, 2π).
func (a *Array) Phase(i int) float64 { return a.sources[i].Phase }

// SetPhase sets the drive phase of source i, wrapped to [0, 2π).
func (a *Array) SetPhase(i int, phase float64) { a.sources[i].Phase = WrapPhase(phase) }

// Centroid returns the mean source position. It is the origin for an empty array.
func (a *Array) Centroid() r3.Vec {
	var c r3.Vec
	if len(a.sources) == 0 {
		return c
	}
	for _, s := range a.sources {
		c = r3.Add(c, s.Pos)
	}
	return r3.Scale(1/float64(len(a.sources)), c)
}

// acquire marks the array as held by an optimizer call.
func (a *Array) acquire() error {
	if !a.inUse.CompareAndSwap(false, true) {
		return ErrExclusiveAccess
	}
	return nil
}

func (a *Array) release() { a.inUse.Store(false) }

// InUse reports whether an optimizer call currently holds the array.
func (a *Array) InUse() bool { return a.inUse.Load() }

// WrapPhase maps any finite phase to [0, 2π). Non-finite input yields 0.
func WrapPhase(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	p = math.Mod(p, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	if p >= 2*math.Pi {
		p = 0
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
