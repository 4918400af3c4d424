package hologram

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
)

// Long computes a hologram in two stages.
//
// The focal phases come from the dominant eigenvector w of the m×m matrix
//
//	H = D^½·G·Gᴴ·D^½ + λ·I,  D = diag(aᵢ/‖Gᵢ‖²)
//
// which couples every pair of foci through the sources, weighted by the
// target amplitudes. Up to the positive diagonal D^½ it is the focal matrix
// G·X of Long et al., X the amplitude-weighted normalised adjoint of G, so
// their dominant eigenvectors share phases. λ = Regularization·tr(H)/m
// shifts the spectrum without changing eigenvectors.
//
// The drive q then solves the regularised least squares problem
//
//	min ‖G·q − a∘e^{i·arg w}‖² + Tikhonov·Σⱼ σⱼ²|qⱼ|²,  σⱼ² = Σᵢ|Gᵢⱼ|·aᵢ/m
//
// q is rotated so its largest-magnitude component has phase 0 (earliest index
// on ties), which makes the output reproducible across eigensolvers.
// Reference: Long et al., "Rendering volumetric haptic shapes in mid-air
// using ultrasound", ACM ToG 33(6), 2014.
type Long struct {
	Regularization float64       // Relative diagonal loading of H. Zero selects 1e-3
	Tikhonov       float64       // Weight of the drive penalty. Zero selects 1
	Amplitude      AmplitudeMode // How drive magnitudes map to amplitudes
	Log            *Logger
}

func (o *Long) Name() string { return "long" }

func (o *Long) Optimize(arr *Array, prob Problem) (Result, error) {
	res := Result{Algorithm: o.Name()}
	reg, tikh := cmp.Or(o.Regularization, 1e-3), cmp.Or(o.Tikhonov, 1.0)
	switch {
	case !(reg > 0) || math.IsInf(reg, 0):
		return res, fmt.Errorf("%w: regularization %v must be positive", ErrConfiguration, o.Regularization)
	case !(tikh > 0) || math.IsInf(tikh, 0):
		return res, fmt.Errorf("%w: Tikhonov weight %v must be positive", ErrConfiguration, o.Tikhonov)
	case !o.Amplitude.valid():
		return res, fmt.Errorf("%w: unknown amplitude mode %d", ErrConfiguration, int(o.Amplitude))
	}
	if err := begin(arr, prob); err != nil {
		return res, err
	}
	defer arr.release()

	G := transferMatrix(arr, prob)
	a := prob.Amplitudes
	m, n := len(G), arr.Len()

	H := focalGram(G)
	scale := make([]float64, m)
	for i := range scale {
		scale[i] = math.Sqrt(a[i] / real(H[i][i]))
	}
	trace := 0.0
	for i := range H {
		for l := range H[i] {
			H[i][l] *= complex(scale[i]*scale[l], 0)
		}
		trace += real(H[i][i])
	}
	lambda := reg
	if trace > 0 {
		lambda = reg * trace / float64(m)
	}
	for i := range H {
		H[i][i] += complex(lambda, 0)
	}

	value, w, ok := dominantEigen(H)
	if !ok {
		return res, fmt.Errorf("%w: eigendecomposition of the %d×%d focal matrix failed", ErrNumericalDegeneracy, m, m)
	}
	f := make([]complex128, m)
	for i, v := range w {
		f[i] = complex(a[i], 0)
		if abs := cmplx.Abs(v); abs > 0 {
			f[i] *= v / complex(abs, 0)
		}
	}

	ones := make([]float64, m)
	for i := range ones {
		ones[i] = 1
	}
	N := weightedGram(G, ones)
	for j := 0; j < n; j++ {
		sigma2 := 0.0
		for i := range G {
			sigma2 += cmplx.Abs(G[i][j]) * a[i]
		}
		N[j][j] += complex(tikh*sigma2/float64(m), 0)
	}
	solver, ok := newHermitianSolver(N)
	if !ok {
		return res, fmt.Errorf("%w: the %d×%d drive fit is singular", ErrNumericalDegeneracy, n, n)
	}
	q, ok := solver.solve(backProject(G, f))
	if !ok {
		return res, fmt.Errorf("%w: the %d×%d drive fit is singular", ErrNumericalDegeneracy, n, n)
	}
	canonicalize(q)
	applyDrive(arr, q, o.Amplitude)

	res.Status, res.Iterations, res.Objective = Converged, 1, value
	o.Log.trace(res.Algorithm, 1, value)
	o.Log.last(res)
	return res, nil
}
