package hologram

import (
	"cmp"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// GD fits the source drives by gradient descent on the complex focal
// residual. The parameters are the source phases, plus the source amplitudes
// with IncludeAmp, plus one free phase ψᵢ per focus, and the objective is
//
//	½·Σᵢ |Fᵢ − aᵢ·e^{iψᵢ}|²
//
// with its analytic gradient. The focal phases start from the field the
// array currently produces. Steps are taken along the negative gradient with
// a backtracking line search. Without IncludeAmp the current amplitudes are
// kept, except that a silent array is driven at AmpMax.
type GD struct {
	MaxIter    int     // Iteration cap. Default 10000
	GradTol    float64 // ‖gradient‖∞ that counts as converged. Default 1e-10
	Tolerance  float64 // Relative objective change over 20 iterations that counts as converged. Default 1e-9
	IncludeAmp bool
	Log        *Logger
}

func (o *GD) Name() string { return "gd" }

func (o *GD) settings() (maxIter int, gradTol, tol float64, err error) {
	maxIter, gradTol, tol = cmp.Or(o.MaxIter, 10000), cmp.Or(o.GradTol, 1e-10), cmp.Or(o.Tolerance, 1e-9)
	switch {
	case maxIter < 1:
		err = fmt.Errorf("%w: iteration cap %d must be at least 1", ErrConfiguration, o.MaxIter)
	case !(gradTol > 0) || !(tol > 0):
		err = fmt.Errorf("%w: tolerances must be positive", ErrConfiguration)
	}
	return maxIter, gradTol, tol, err
}

// gdRecorder traces the major iterations of a run. Minimize counts the
// starting point as the first major iteration.
type gdRecorder struct {
	algo string
	log  *Logger
}

func (r gdRecorder) Init() error { return nil }

func (r gdRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op&optimize.MajorIteration != 0 && stats.MajorIterations > 1 {
		r.log.trace(r.algo, stats.MajorIterations-1, loc.F)
	}
	return nil
}

func (o *GD) Optimize(arr *Array, prob Problem) (Result, error) {
	res := Result{Algorithm: o.Name()}
	maxIter, gradTol, tol, err := o.settings()
	if err != nil {
		return res, err
	}
	if err := begin(arr, prob); err != nil {
		return res, err
	}
	defer arr.release()

	md, x0 := newDriveModel(arr, prob, o.IncludeAmp, true)
	J := mat.NewDense(md.residuals(), md.params(), nil)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return halfSquaredNorm(md.evaluate(x, nil))
		},
		Grad: func(grad, x []float64) {
			r := md.evaluate(x, J)
			var g mat.VecDense
			g.MulVec(J.T(), mat.NewVecDense(len(r), r))
			copy(grad, g.RawVector().Data)
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIter + 1,
		GradientThreshold: gradTol,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-15,
			Relative:   tol,
			Iterations: 20,
		},
		Recorder: gdRecorder{algo: res.Algorithm, log: o.Log},
	}

	out, err := optimize.Minimize(problem, x0, settings, &optimize.GradientDescent{})
	if out == nil || floats.HasNaN(out.X) {
		return res, fmt.Errorf("%w: gradient descent failed: %v", ErrNumericalDegeneracy, err)
	}
	switch out.Status {
	case optimize.GradientThreshold, optimize.FunctionConvergence, optimize.StepConvergence, optimize.MethodConverge, optimize.Success:
		res.Status = Converged
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit:
		res.Status = HitIterationCap
	default:
		res.Status = Stalled
	}
	if err != nil {
		res.Status = Stalled
	}

	md.store(arr, out.X)
	res.Iterations, res.Objective = max(out.Stats.MajorIterations-1, 0), out.F
	o.Log.last(res)
	return res, nil
}
