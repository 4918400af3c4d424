package hologram

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Problem is a target focal pattern.
type Problem struct {
	Foci       []r3.Vec  // Focal points in mm
	Amplitudes []float64 // Target amplitude at each focus, relative units
	Wavelength float64   // Wavelength used by the propagation model, in mm
}

// Status reports how an optimizer run ended.
type Status int

const (
	// Converged means the algorithm met its stopping tolerance.
	Converged Status = iota
	// HitIterationCap means the iteration budget ran out first. The array
	// still holds the best result found.
	HitIterationCap
	// Stalled means no further improving step could be found (for LM, the
	// damping grew past its cap) before the tolerance was met.
	Stalled
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case HitIterationCap:
		return "hit iteration cap"
	case Stalled:
		return "stalled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result describes a completed optimizer run. The optimized drive state
// itself lives in the Array that was passed in.
type Result struct {
	Algorithm  string
	Status     Status
	Iterations int
	Objective  float64 // Final value of the algorithm's own objective
}

// Optimizer computes source phases (and optionally amplitudes) for a focal
// pattern and writes them into an Array in place.
//
// Optimize validates its input before doing any numeric work and returns an
// error wrapping ErrConfiguration for invalid input, ErrExclusiveAccess when
// the array is held by another call, or ErrNumericalDegeneracy when no usable
// result could be produced. Non-convergence is not an error: it is reported
// through Result.Status and the best result found is kept.
type Optimizer interface {
	Name() string
	Optimize(arr *Array, prob Problem) (Result, error)
}

// AmplitudeMode selects how an optimizer sets source amplitudes.
type AmplitudeMode int

const (
	// PhaseOnly drives every source at AmpMax.
	PhaseOnly AmplitudeMode = iota
	// Normalize scales the computed amplitudes so the largest equals AmpMax.
	Normalize
	// Clamp uses the computed amplitudes, clipped to [0, AmpMax].
	Clamp
)

func (m AmplitudeMode) valid() bool { return m >= PhaseOnly && m <= Clamp }

// validate checks the parts of a run shared by every optimizer.
func validate(arr *Array, prob Problem) error {
	switch {
	case arr == nil:
		return fmt.Errorf("%w: nil array", ErrConfiguration)
	case arr.Len() == 0:
		return fmt.Errorf("%w: array has no sources", ErrConfiguration)
	case len(prob.Foci) == 0:
		return fmt.Errorf("%w: no foci", ErrConfiguration)
	case len(prob.Foci) != len(prob.Amplitudes):
		return fmt.Errorf("%w: %d foci but %d target amplitudes", ErrConfiguration, len(prob.Foci), len(prob.Amplitudes))
	case !(prob.Wavelength > 0) || math.IsInf(prob.Wavelength, 0):
		return fmt.Errorf("%w: wavelength %v must be positive and finite", ErrConfiguration, prob.Wavelength)
	}
	for i, f := range prob.Foci {
		if !finiteVec(f) {
			return fmt.Errorf("%w: focus %d is not finite", ErrConfiguration, i)
		}
		if a := prob.Amplitudes[i]; !(a >= 0) || math.IsInf(a, 0) {
			return fmt.Errorf("%w: target amplitude %d is %v", ErrConfiguration, i, a)
		}
	}
	for i, s := range arr.sources {
		if !finiteVec(s.Pos) {
			return fmt.Errorf("%w: source %d position is not finite", ErrConfiguration, i)
		}
	}
	return nil
}

// begin validates and takes exclusive use of arr. On success the caller must
// call arr.release.
func begin(arr *Array, prob Problem) error {
	if err := validate(arr, prob); err != nil {
		return err
	}
	return arr.acquire()
}

// transferMatrix returns G with G[i][j] the unit-drive field of source j at focus i.
func transferMatrix(arr *Array, prob Problem) [][]complex128 {
	g := arr.propagator(2 * math.Pi / prob.Wavelength)
	G := make([][]complex128, len(prob.Foci))
	for i, f := range prob.Foci {
		G[i] = make([]complex128, len(arr.sources))
		for j, s := range arr.sources {
			G[i][j] = g.transfer(s.Pos, f)
		}
	}
	return G
}

// focalField returns F = G·q.
func focalField(G [][]complex128, q []complex128) []complex128 {
	F := make([]complex128, len(G))
	for i, row := range G {
		var sum complex128
		for j, g := range row {
			sum += g * q[j]
		}
		F[i] = sum
	}
	return F
}

// drive returns the complex drive aⱼ·e^{iφⱼ} of every source.
func drive(arr *Array) []complex128 {
	q := make([]complex128, len(arr.sources))
	for j, s := range arr.sources {
		q[j] = cmplx.Rect(s.Amp, s.Phase)
	}
	return q
}

// applyDrive writes the phases of q into arr and sets amplitudes per mode.
func applyDrive(arr *Array, q []complex128, mode AmplitudeMode) {
	maxAbs := 0.0
	for _, v := range q {
		maxAbs = math.Max(maxAbs, cmplx.Abs(v))
	}
	for j, v := range q {
		arr.SetPhase(j, cmplx.Phase(v))
		switch {
		case mode == Normalize && maxAbs > 0:
			arr.SetAmplitude(j, arr.ampMax*cmplx.Abs(v)/maxAbs)
		case mode == Clamp:
			arr.SetAmplitude(j, cmplx.Abs(v))
		default:
			arr.SetAmplitude(j, arr.ampMax)
		}
	}
}

// canonicalize rotates v by a global phase so that its largest-magnitude
// component is real and non-negative. Magnitudes within a relative 1e-12 of
// the largest count as ties, and the earliest tied component is chosen.
func canonicalize(v []complex128) {
	best := 0.0
	for _, c := range v {
		best = math.Max(best, cmplx.Abs(c))
	}
	if best <= 0 {
		return
	}
	at := 0
	for j, c := range v {
		if cmplx.Abs(c) >= best*(1-1e-12) {
			at = j
			break
		}
	}
	rot := cmplx.Rect(1, -cmplx.Phase(v[at]))
	for j := range v {
		v[j] *= rot
	}
	v[at] = complex(cmplx.Abs(v[at]), 0)
}

// Names lists the algorithms known to ByName.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var registry = map[string]func() Optimizer{
	"greedy":           func() Optimizer { return &GreedyBruteForce{} },
	"greedybruteforce": func() Optimizer { return &GreedyBruteForce{} },
	"horn":             func() Optimizer { return &Horn{} },
	"long":             func() Optimizer { return &Long{} },
	"lm":               func() Optimizer { return &LM{} },
	"gspat":            func() Optimizer { return &GSPAT{} },
	"gd":               func() Optimizer { return &GD{} },
}

// ByName returns a default-configured optimizer. Matching ignores case,
// hyphens and underscores, so "GS-PAT" selects GSPAT.
func ByName(name string) (Optimizer, error) {
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(name))
	newOpt, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown optimizer %q (known: %s)", ErrConfiguration, name, strings.Join(Names(), ", "))
	}
	return newOpt(), nil
}
