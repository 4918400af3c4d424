package hologram

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
)

// GSPAT is the Gerchberg–Saxton variant for phased arrays of transducers.
// Each iteration back-propagates the focal targets to the sources through
// the row-normalised adjoint B of G (Bⱼᵢ = conj(Gᵢⱼ)/Σₗ|Gᵢₗ|²), applies the
// amplitude constraint, propagates forward, and keeps only the phase of the
// focal field:
//
//	x ← constrain(B·p);  F ← G·x;  pᵢ ← aᵢ·Fᵢ/|Fᵢ|
//
// The first pass starts from p = a. The objective is the distance between
// the normalised achieved and target focal amplitude profiles.
//
// Reference: Plasencia et al., "GS-PAT: high-speed multi-point sound-fields
// for phased arrays of transducers", ACM ToG 39(4), 2020.
type GSPAT struct {
	Iterations int           // Default 100
	Tolerance  float64       // Change in focal error that counts as converged. Default 1e-9
	Amplitude  AmplitudeMode // Amplitude constraint applied at every iteration
	Log        *Logger
}

func (o *GSPAT) Name() string { return "gspat" }

func (o *GSPAT) Optimize(arr *Array, prob Problem) (Result, error) {
	res := Result{Algorithm: o.Name()}
	iters := cmp.Or(o.Iterations, 100)
	tol := cmp.Or(o.Tolerance, 1e-9)
	switch {
	case iters < 1:
		return res, fmt.Errorf("%w: iteration count %d must be at least 1", ErrConfiguration, o.Iterations)
	case !(tol >= 0):
		return res, fmt.Errorf("%w: tolerance %v must be non-negative", ErrConfiguration, o.Tolerance)
	case !o.Amplitude.valid():
		return res, fmt.Errorf("%w: unknown amplitude mode %d", ErrConfiguration, int(o.Amplitude))
	}
	if err := begin(arr, prob); err != nil {
		return res, err
	}
	defer arr.release()

	G := transferMatrix(arr, prob)
	B, err := backPropagator(G)
	if err != nil {
		return res, err
	}
	n, m := arr.Len(), len(G)

	fallback := make([]float64, n)
	for j, s := range arr.sources {
		fallback[j] = s.Phase
	}
	p := make([]complex128, m)
	for i, a := range prob.Amplitudes {
		p[i] = complex(a, 0)
	}
	x := make([]complex128, n)
	prevErr := math.Inf(1)
	res.Status = HitIterationCap
	for it := 1; it <= iters; it++ {
		res.Iterations = it
		for j := range x {
			var sum complex128
			for i, b := range B[j] {
				sum += b * p[i]
			}
			x[j] = sum
		}
		constrainDrive(x, fallback, arr.ampMax, o.Amplitude)

		F := focalField(G, x)
		for i, f := range F {
			if abs := cmplx.Abs(f); abs > 0 {
				p[i] = complex(prob.Amplitudes[i]/abs, 0) * f
			} else {
				p[i] = complex(prob.Amplitudes[i], 0)
			}
		}

		e := profileError(F, prob.Amplitudes)
		res.Objective = e
		o.Log.trace(res.Algorithm, it, e)
		if math.Abs(prevErr-e) < tol {
			res.Status = Converged
			break
		}
		prevErr = e
	}

	for j, v := range x {
		if v == 0 {
			arr.SetPhase(j, fallback[j])
		} else {
			arr.SetPhase(j, cmplx.Phase(v))
		}
		arr.SetAmplitude(j, cmplx.Abs(v))
	}
	o.Log.last(res)
	return res, nil
}

// backPropagator returns B with B[j][i] = conj(G[i][j]) / Σₗ|G[i][l]|².
func backPropagator(G [][]complex128) ([][]complex128, error) {
	n := len(G[0])
	B := make([][]complex128, n)
	for j := range B {
		B[j] = make([]complex128, len(G))
	}
	for i, row := range G {
		norm := 0.0
		for _, g := range row {
			norm += real(g)*real(g) + imag(g)*imag(g)
		}
		if !(norm > 0) || math.IsInf(norm, 0) {
			return nil, fmt.Errorf("%w: focus %d has no usable coupling to the array", ErrNumericalDegeneracy, i)
		}
		for j, g := range row {
			B[j][i] = cmplx.Conj(g) / complex(norm, 0)
		}
	}
	return B, nil
}

// constrainDrive applies the amplitude constraint of mode to x in place.
// Components with zero magnitude take their phase from fallback.
func constrainDrive(x []complex128, fallback []float64, ampMax float64, mode AmplitudeMode) {
	maxAbs := 0.0
	for _, v := range x {
		maxAbs = math.Max(maxAbs, cmplx.Abs(v))
	}
	for j, v := range x {
		abs, phase := cmplx.Abs(v), cmplx.Phase(v)
		if abs == 0 {
			phase = fallback[j]
		}
		switch mode {
		case PhaseOnly:
			abs = ampMax
		case Normalize:
			if maxAbs > 0 {
				abs = ampMax * abs / maxAbs
			}
		case Clamp:
			abs = math.Min(abs, ampMax)
		}
		x[j] = cmplx.Rect(abs, phase)
	}
}

// profileError is the Euclidean distance between |F| and the targets, each
// scaled so its largest entry is 1. An all-zero profile stays zero.
func profileError(F []complex128, target []float64) float64 {
	maxF, maxA := 0.0, 0.0
	for i, f := range F {
		maxF = math.Max(maxF, cmplx.Abs(f))
		maxA = math.Max(maxA, target[i])
	}
	sum := 0.0
	for i, f := range F {
		var u, v float64
		if maxF > 0 {
			u = cmplx.Abs(f) / maxF
		}
		if maxA > 0 {
			v = target[i] / maxA
		}
		sum += (u - v) * (u - v)
	}
	return math.Sqrt(sum)
}
