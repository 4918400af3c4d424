package hologram

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
)

// Horn solves the focal phase retrieval problem behind a multi-focus
// hologram and back-projects the result to the sources.
//
// With P = diag(a) and the Tikhonov pseudo-inverse G⁺ = Gᴴ(GGᴴ + α²I)⁻¹,
// the focal pattern a∘u (|uᵢ| = 1) can be synthesised by the drive
// q = G⁺·P·u with the residual power uᴴMu, M = P(I − G·G⁺)P. Horn minimises
// that quadratic form over unit-modulus u by cyclic coordinate updates: for
// fixed u_l (l ≠ i) the best uᵢ is −e^{i·arg sᵢ}, sᵢ = Σ_{l≠i} M_il·u_l, and
// Momentum blends that update with the previous uᵢ. It is the rank-one
// form of the semidefinite relaxation of Horn et al., "Phase recovery,
// MaxCut and complex semidefinite programming", Math. Program. 2015.
//
// The run starts from the phases of the focal field the array currently
// produces (1 where that field vanishes) and is fully deterministic. The
// drive is rotated so its largest-magnitude component has phase 0 before
// amplitudes are set per Amplitude.
type Horn struct {
	MaxIter   int           // Sweep cap. Default 1000
	Tolerance float64       // Relative objective change that counts as converged. Default 1e-9
	Momentum  float64       // Weight of the previous value in [0, 1). Default 0
	Alpha     float64       // Tikhonov parameter of the pseudo-inverse. Default 1e-3
	Amplitude AmplitudeMode // How drive magnitudes map to amplitudes
	Log       *Logger
}

func (o *Horn) Name() string { return "horn" }

func (o *Horn) settings() (maxIter int, tol, alpha float64, err error) {
	maxIter, tol, alpha = cmp.Or(o.MaxIter, 1000), cmp.Or(o.Tolerance, 1e-9), cmp.Or(o.Alpha, 1e-3)
	switch {
	case maxIter < 1:
		err = fmt.Errorf("%w: iteration cap %d must be at least 1", ErrConfiguration, o.MaxIter)
	case !(tol > 0):
		err = fmt.Errorf("%w: tolerance %v must be positive", ErrConfiguration, o.Tolerance)
	case !(o.Momentum >= 0 && o.Momentum < 1):
		err = fmt.Errorf("%w: momentum %v must be in [0, 1)", ErrConfiguration, o.Momentum)
	case !(alpha > 0) || math.IsInf(alpha, 0):
		err = fmt.Errorf("%w: alpha %v must be positive", ErrConfiguration, o.Alpha)
	case !o.Amplitude.valid():
		err = fmt.Errorf("%w: unknown amplitude mode %d", ErrConfiguration, int(o.Amplitude))
	}
	return maxIter, tol, alpha, err
}

func (o *Horn) Optimize(arr *Array, prob Problem) (Result, error) {
	res := Result{Algorithm: o.Name()}
	maxIter, tol, alpha, err := o.settings()
	if err != nil {
		return res, err
	}
	if err := begin(arr, prob); err != nil {
		return res, err
	}
	defer arr.release()

	G := transferMatrix(arr, prob)
	W, ok := tikhonovInverse(G, alpha)
	if !ok {
		return res, fmt.Errorf("%w: the focal coupling matrix is not positive definite", ErrNumericalDegeneracy)
	}
	m := len(G)
	a := prob.Amplitudes
	M := make([][]complex128, m)
	for i := range M {
		M[i] = make([]complex128, m)
		for l := range M[i] {
			M[i][l] = complex(alpha*alpha*a[i]*a[l], 0) * W[i][l]
		}
	}

	u := make([]complex128, m)
	for i, f := range focalField(G, drive(arr)) {
		u[i] = 1
		if abs := cmplx.Abs(f); abs > 0 {
			u[i] = f / complex(abs, 0)
		}
	}

	mu := complex(o.Momentum, 0)
	obj := quadForm(M, u)
	res.Status = HitIterationCap
	for it := 1; it <= maxIter; it++ {
		for i := 0; i < m; i++ {
			var s complex128
			for l, v := range M[i] {
				if l != i {
					s += v * u[l]
				}
			}
			if cmplx.Abs(s) == 0 {
				continue
			}
			target := -s / complex(cmplx.Abs(s), 0)
			next := mu*u[i] + (1-mu)*target
			if abs := cmplx.Abs(next); abs > 1e-12 {
				u[i] = next / complex(abs, 0)
			} else {
				u[i] = target
			}
		}
		prev := obj
		obj = quadForm(M, u)
		res.Iterations = it
		o.Log.trace(res.Algorithm, it, obj)
		if math.Abs(obj-prev) <= tol*math.Max(math.Abs(prev), math.SmallestNonzeroFloat64) {
			res.Status = Converged
			break
		}
	}

	// q = Gᴴ·W·P·u
	pu := make([]complex128, m)
	for i := range pu {
		var sum complex128
		for l, w := range W[i] {
			sum += w * complex(a[l], 0) * u[l]
		}
		pu[i] = sum
	}
	q := backProject(G, pu)
	canonicalize(q)
	applyDrive(arr, q, o.Amplitude)
	res.Objective = obj
	o.Log.last(res)
	return res, nil
}
