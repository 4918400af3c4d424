package hologram

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LM fits the source drives to the targets with the Levenberg–Marquardt
// method. The parameters are the source phases, plus the source amplitudes
// with IncludeAmp, plus one free phase per focus with ComplexTarget.
// Without IncludeAmp the current amplitudes are kept, except that a silent
// array is driven at AmpMax.
//
// By default the residual of focus i is |Fᵢ| − aᵢ. With ComplexTarget it is
// the complex difference Fᵢ − aᵢ·e^{iψᵢ}, split into real and imaginary
// parts, where the focal phases ψ are fitted along with the drives.
//
// Each iteration solves (JᵀJ + λI)δ = −Jᵀr with the analytic Jacobian J.
// A step is accepted only if it lowers ½‖r‖²; the damping λ then shrinks by
// max(1/3, 1−(2ρ−1)³), otherwise it grows by a doubling factor and the step
// is retried. Phases are wrapped to [0, 2π) and amplitudes clamped after
// every accepted step.
//
// Reference: K. Madsen, H.B. Nielsen, O. Tingleff, "Methods for non-linear
// least squares problems", 2nd ed., IMM DTU, 2004, algorithm 3.16.
type LM struct {
	MaxIter       int     // Iteration cap. Default 200
	GradTol       float64 // ‖Jᵀr‖∞ that counts as converged. Default 1e-10
	StepTol       float64 // Relative step length that counts as converged. Default 1e-10
	Tau           float64 // Initial damping relative to max diag(JᵀJ). Default 1e-3
	LambdaMax     float64 // Damping cap. Default 1e16
	IncludeAmp    bool
	ComplexTarget bool
	Log           *Logger
}

func (o *LM) Name() string { return "lm" }

type lmSettings struct {
	maxIter                       int
	gradTol, stepTol, tau, lamMax float64
}

func (o *LM) settings() (s lmSettings, err error) {
	s = lmSettings{
		maxIter: cmp.Or(o.MaxIter, 200),
		gradTol: cmp.Or(o.GradTol, 1e-10),
		stepTol: cmp.Or(o.StepTol, 1e-10),
		tau:     cmp.Or(o.Tau, 1e-3),
		lamMax:  cmp.Or(o.LambdaMax, 1e16),
	}
	switch {
	case s.maxIter < 1:
		err = fmt.Errorf("%w: iteration cap %d must be at least 1", ErrConfiguration, o.MaxIter)
	case !(s.gradTol > 0) || !(s.stepTol > 0):
		err = fmt.Errorf("%w: tolerances must be positive", ErrConfiguration)
	case !(s.tau > 0) || !(s.lamMax > 0):
		err = fmt.Errorf("%w: damping parameters must be positive", ErrConfiguration)
	}
	return s, err
}

// driveModel evaluates residuals and Jacobians for one problem. Without
// includeAmp the sources are driven at fixedAmp.
type driveModel struct {
	G             [][]complex128
	target        []float64
	n, m          int
	includeAmp    bool
	complexTarget bool
	ampMax        float64
	fixedAmp      []float64
}

// newDriveModel returns the model of prob on arr and its starting point: the
// current phases and amplitudes of arr, and the phases of the focal field it
// produces. A silent array starts with every amplitude at AmpMax.
func newDriveModel(arr *Array, prob Problem, includeAmp, complexTarget bool) (*driveModel, []float64) {
	md := &driveModel{
		G:             transferMatrix(arr, prob),
		target:        prob.Amplitudes,
		n:             arr.Len(),
		m:             len(prob.Foci),
		includeAmp:    includeAmp,
		complexTarget: complexTarget,
		ampMax:        arr.ampMax,
		fixedAmp:      make([]float64, arr.Len()),
	}
	silent := true
	for j, s := range arr.sources {
		md.fixedAmp[j] = s.Amp
		silent = silent && s.Amp == 0
	}
	if silent {
		for j := range md.fixedAmp {
			md.fixedAmp[j] = arr.ampMax
		}
	}

	x := make([]float64, md.params())
	theta, amp, psi := md.unpack(x)
	for j, s := range arr.sources {
		theta[j] = s.Phase
	}
	copy(amp, md.fixedAmp)
	if psi != nil {
		F, _ := md.field(x)
		for i, f := range F {
			psi[i] = WrapPhase(cmplx.Phase(f))
		}
	}
	return md, x
}

// store writes the drive of x into arr. A negative amplitude is stored as its
// magnitude with the phase turned by π.
func (md *driveModel) store(arr *Array, x []float64) {
	theta, amp, _ := md.unpack(x)
	for j := 0; j < md.n; j++ {
		a, ph := md.fixedAmp[j], theta[j]
		if amp != nil {
			a = amp[j]
		}
		if a < 0 {
			a, ph = -a, ph+math.Pi
		}
		arr.SetPhase(j, ph)
		arr.SetAmplitude(j, a)
	}
}

func (md *driveModel) params() int {
	p := md.n
	if md.includeAmp {
		p += md.n
	}
	if md.complexTarget {
		p += md.m
	}
	return p
}

func (md *driveModel) residuals() int {
	if md.complexTarget {
		return 2 * md.m
	}
	return md.m
}

// unpack returns the phase, amplitude and focal phase views of x.
func (md *driveModel) unpack(x []float64) (theta, amp, psi []float64) {
	theta = x[:md.n]
	rest := x[md.n:]
	if md.includeAmp {
		amp, rest = rest[:md.n], rest[md.n:]
	}
	if md.complexTarget {
		psi = rest[:md.m]
	}
	return theta, amp, psi
}

// project wraps the phases and clamps the amplitudes of x in place.
func (md *driveModel) project(x []float64) {
	theta, amp, psi := md.unpack(x)
	for j := range theta {
		theta[j] = WrapPhase(theta[j])
	}
	for j := range amp {
		amp[j] = clamp(amp[j], 0, md.ampMax)
	}
	for i := range psi {
		psi[i] = WrapPhase(psi[i])
	}
}

func (md *driveModel) field(x []float64) (F, q []complex128) {
	theta, amp, _ := md.unpack(x)
	q = make([]complex128, md.n)
	for j := range q {
		a := md.fixedAmp[j]
		if amp != nil {
			a = amp[j]
		}
		q[j] = cmplx.Rect(a, theta[j])
	}
	return focalField(md.G, q), q
}

// evaluate returns the residual vector and, when jac is non-nil, fills the
// Jacobian (residuals × params).
func (md *driveModel) evaluate(x []float64, jac *mat.Dense) []float64 {
	F, q := md.field(x)
	_, _, psi := md.unpack(x)
	r := make([]float64, md.residuals())
	for i, f := range F {
		if md.complexTarget {
			d := f - cmplx.Rect(md.target[i], psi[i])
			r[2*i], r[2*i+1] = real(d), imag(d)
		} else {
			r[i] = cmplx.Abs(f) - md.target[i]
		}
	}
	if jac == nil {
		return r
	}
	jac.Zero()
	for i, f := range F {
		absF := cmplx.Abs(f)
		for j := 0; j < md.n; j++ {
			c := md.G[i][j] * q[j]
			dTheta := complex(-imag(c), real(c)) // i·c
			var dAmp complex128
			if md.includeAmp {
				dAmp = md.G[i][j] * cmplx.Rect(1, x[j])
			}
			if md.complexTarget {
				jac.Set(2*i, j, real(dTheta))
				jac.Set(2*i+1, j, imag(dTheta))
				if md.includeAmp {
					jac.Set(2*i, md.n+j, real(dAmp))
					jac.Set(2*i+1, md.n+j, imag(dAmp))
				}
				continue
			}
			if absF < 1e-300 {
				continue
			}
			jac.Set(i, j, real(cmplx.Conj(f)*dTheta)/absF)
			if md.includeAmp {
				jac.Set(i, md.n+j, real(cmplx.Conj(f)*dAmp)/absF)
			}
		}
		if md.complexTarget {
			col := md.n + i
			if md.includeAmp {
				col += md.n
			}
			s, c := math.Sincos(psi[i])
			jac.Set(2*i, col, md.target[i]*s)
			jac.Set(2*i+1, col, -md.target[i]*c)
		}
	}
	return r
}

func halfSquaredNorm(r []float64) float64 { return 0.5 * floats.Dot(r, r) }

// normalEquations returns JᵀJ and Jᵀr.
func normalEquations(J *mat.Dense, r []float64) (*mat.SymDense, []float64) {
	_, p := J.Dims()
	JtJ := mat.NewSymDense(p, nil)
	JtJ.SymOuterK(1, J.T())
	var g mat.VecDense
	g.MulVec(J.T(), mat.NewVecDense(len(r), r))
	return JtJ, g.RawVector().Data
}

func (o *LM) Optimize(arr *Array, prob Problem) (Result, error) {
	res := Result{Algorithm: o.Name()}
	cfg, err := o.settings()
	if err != nil {
		return res, err
	}
	if err := begin(arr, prob); err != nil {
		return res, err
	}
	defer arr.release()

	md, x := newDriveModel(arr, prob, o.IncludeAmp, o.ComplexTarget)

	J := mat.NewDense(md.residuals(), md.params(), nil)
	r := md.evaluate(x, J)
	cost := halfSquaredNorm(r)
	JtJ, g := normalEquations(J, r)

	mu := 0.0
	for i := 0; i < md.params(); i++ {
		mu = math.Max(mu, JtJ.At(i, i))
	}
	mu *= cfg.tau
	if mu == 0 {
		mu = cfg.tau
	}
	nu := 2.0

	res.Status = HitIterationCap
	found := floats.Norm(g, math.Inf(1)) <= cfg.gradTol
	if found {
		res.Status = Converged
	}
	for k := 1; k <= cfg.maxIter && !found; k++ {
		res.Iterations = k
		negG := make([]float64, len(g))
		floats.ScaleTo(negG, -1, g)
		h, ok := solveDamped(JtJ, mu, negG)
		if !ok {
			mu, nu = mu*nu, nu*2
			if mu > cfg.lamMax {
				res.Status = Stalled
				break
			}
			continue
		}
		if floats.Norm(h, 2) <= cfg.stepTol*(floats.Norm(x, 2)+cfg.stepTol) {
			res.Status = Converged
			break
		}

		xNew := make([]float64, len(x))
		floats.AddTo(xNew, x, h)
		md.project(xNew)
		rNew := md.evaluate(xNew, nil)
		costNew := halfSquaredNorm(rNew)

		// predicted gain L(0) - L(h) = ½hᵀ(μh - g)
		muH := make([]float64, len(h))
		floats.ScaleTo(muH, mu, h)
		floats.Sub(muH, g)
		predicted := 0.5 * floats.Dot(h, muH)

		if costNew < cost && predicted > 0 {
			rho := (cost - costNew) / predicted
			x, cost = xNew, costNew
			r = md.evaluate(x, J)
			JtJ, g = normalEquations(J, r)
			mu *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
			nu = 2
			o.Log.trace(res.Algorithm, k, cost)
			if floats.Norm(g, math.Inf(1)) <= cfg.gradTol {
				res.Status = Converged
				found = true
			}
			continue
		}
		mu, nu = mu*nu, nu*2
		if mu > cfg.lamMax {
			res.Status = Stalled
			break
		}
	}

	md.store(arr, x)
	res.Objective = cost
	o.Log.last(res)
	return res, nil
}
