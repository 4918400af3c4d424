package hologram

import (
	"bytes"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func allOptimizers() []Optimizer {
	return []Optimizer{&GreedyBruteForce{}, &Horn{}, &Long{}, &LM{}, &GD{}, &GSPAT{}}
}

// squareProblem is four silent sources at the corners of a 10 mm square with
// one focus at the centre of the square.
func squareProblem(t *testing.T) (*Array, Problem) {
	t.Helper()
	arr, err := GridLayout(2, 2, 10, 0)
	require.NoError(t, err)
	return arr, Problem{
		Foci:       []r3.Vec{{}},
		Amplitudes: []float64{1},
		Wavelength: arr.Wavelength(),
	}
}

func angularDistance(a, b float64) float64 {
	d := math.Abs(WrapPhase(a) - WrapPhase(b))
	return math.Min(d, 2*math.Pi-d)
}

// Every optimizer starts from a silent array, so the baseline field at the
// focus is zero and any drive that focuses must beat it.
func TestOptimizersFocusTheSquareFromSilence(t *testing.T) {
	_, prob := squareProblem(t)
	baseArr, _ := squareProblem(t)
	baseline, err := baseArr.FieldAt(prob.Foci[0])
	require.NoError(t, err)
	coherent := 4 / (5 * math.Sqrt2)

	for _, opt := range allOptimizers() {
		t.Run(opt.Name(), func(t *testing.T) {
			arr, prob := squareProblem(t)
			res, err := opt.Optimize(arr, prob)
			require.NoError(t, err)
			assert.Equal(t, opt.Name(), res.Algorithm)
			assert.False(t, arr.InUse())

			v, err := arr.FieldAt(prob.Foci[0])
			require.NoError(t, err)
			assert.Greater(t, cmplx.Abs(v), cmplx.Abs(baseline))
			assert.GreaterOrEqual(t, cmplx.Abs(v), 0.95*coherent)

			for j := 0; j < arr.Len(); j++ {
				assert.GreaterOrEqual(t, arr.Phase(j), 0.0)
				assert.Less(t, arr.Phase(j), 2*math.Pi)
				assert.GreaterOrEqual(t, arr.Amplitude(j), 0.0)
				assert.LessOrEqual(t, arr.Amplitude(j), arr.AmpMax())
			}
		})
	}
}

func TestOptimizerValidation(t *testing.T) {
	good, prob := squareProblem(t)
	tests := []struct {
		name string
		arr  *Array
		prob Problem
	}{
		{"nil array", nil, prob},
		{"no sources", NewArray(0), prob},
		{"no foci", good, Problem{Wavelength: 8.5}},
		{"length mismatch", good, Problem{Foci: prob.Foci, Amplitudes: []float64{1, 2}, Wavelength: 8.5}},
		{"negative amplitude", good, Problem{Foci: prob.Foci, Amplitudes: []float64{-1}, Wavelength: 8.5}},
		{"NaN amplitude", good, Problem{Foci: prob.Foci, Amplitudes: []float64{math.NaN()}, Wavelength: 8.5}},
		{"infinite focus", good, Problem{Foci: []r3.Vec{{X: math.Inf(1)}}, Amplitudes: []float64{1}, Wavelength: 8.5}},
		{"zero wavelength", good, Problem{Foci: prob.Foci, Amplitudes: []float64{1}}},
	}
	for _, opt := range allOptimizers() {
		for _, tt := range tests {
			t.Run(opt.Name()+"/"+tt.name, func(t *testing.T) {
				_, err := opt.Optimize(tt.arr, tt.prob)
				assert.ErrorIs(t, err, ErrConfiguration)
			})
		}
	}

	bad := []Optimizer{
		&GreedyBruteForce{PhaseDiv: -1},
		&GreedyBruteForce{Tolerance: -1},
		&Horn{Momentum: 1},
		&Horn{Alpha: -1},
		&Long{Regularization: -1},
		&Long{Tikhonov: -1},
		&Long{Amplitude: AmplitudeMode(8)},
		&LM{MaxIter: -3},
		&GD{MaxIter: -1},
		&GD{GradTol: -1},
		&GSPAT{Iterations: -1},
		&GSPAT{Amplitude: AmplitudeMode(-2)},
	}
	for _, opt := range bad {
		arr, prob := squareProblem(t)
		_, err := opt.Optimize(arr, prob)
		assert.ErrorIs(t, err, ErrConfiguration, "%#v", opt)
	}
}

func TestOptimizerExclusiveUse(t *testing.T) {
	for _, opt := range allOptimizers() {
		arr, prob := squareProblem(t)
		require.NoError(t, arr.acquire())
		_, err := opt.Optimize(arr, prob)
		assert.ErrorIs(t, err, ErrExclusiveAccess, opt.Name())
		arr.release()
	}
}

func TestGreedySinglePhaseDivisionIsNoOp(t *testing.T) {
	arr, prob := squareProblem(t)
	for j := 0; j < arr.Len(); j++ {
		arr.SetAmplitude(j, 1)
		arr.SetPhase(j, 0.7*float64(j+1))
	}
	before := arr.Sources()
	res, err := (&GreedyBruteForce{PhaseDiv: 1}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Status)
	assert.Equal(t, before, arr.Sources())
}

func TestGreedyDeterministicWithSeed(t *testing.T) {
	run := func() []Source {
		arr, err := GridLayout(3, 3, 10, 0)
		require.NoError(t, err)
		prob := Problem{
			Foci:       []r3.Vec{{X: -10, Z: 60}, {X: 10, Z: 60}},
			Amplitudes: []float64{0.05, 0.1},
			Wavelength: arr.Wavelength(),
		}
		_, err = (&GreedyBruteForce{IncludeAmp: true, AmpDiv: 4, Randomize: true, Seed: 42}).Optimize(arr, prob)
		require.NoError(t, err)
		return arr.Sources()
	}
	assert.Equal(t, run(), run())
}

func TestHornAndLongCoincidentFocus(t *testing.T) {
	for _, opt := range []Optimizer{&Horn{}, &Long{}} {
		t.Run(opt.Name(), func(t *testing.T) {
			arr := NewArrayFromSources(Source{Amp: 0.2, Phase: 1.3})
			prob := Problem{Foci: []r3.Vec{{}}, Amplitudes: []float64{1}, Wavelength: arr.Wavelength()}
			res, err := opt.Optimize(arr, prob)
			require.NoError(t, err)
			assert.Equal(t, Converged, res.Status)
			assert.Less(t, angularDistance(arr.Phase(0), 0), 1e-6)
			assert.Equal(t, 1.0, arr.Amplitude(0))
		})
	}
}

func TestLongCanonicalPhase(t *testing.T) {
	arr, err := GridLayout(3, 1, 10, 0)
	require.NoError(t, err)
	prob := Problem{Foci: []r3.Vec{{X: 7, Z: 40}}, Amplitudes: []float64{1}, Wavelength: arr.Wavelength()}
	_, err = (&Long{Amplitude: Normalize}).Optimize(arr, prob)
	require.NoError(t, err)

	// with one focus the penalty is proportional to |G|, so every drive has
	// the same magnitude and the earliest source carries phase 0
	for j := 0; j < 3; j++ {
		assert.InDelta(t, 1.0, arr.Amplitude(j), 1e-9, "source %d", j)
	}
	assert.Equal(t, 0.0, arr.Phase(0))

	// the drive matches the conjugate of the transfer to the focus
	G := transferMatrix(arr, prob)
	ref := cmplx.Phase(cmplx.Conj(G[0][0]))
	for j := 0; j < 3; j++ {
		want := cmplx.Phase(cmplx.Conj(G[0][j])) - ref
		assert.Less(t, angularDistance(arr.Phase(j), want), 1e-6, "source %d", j)
	}
}

// unevenProblem is a silent 8×8 array and three foci 80 mm away, the middle
// one asking for half the amplitude of the others.
func unevenProblem(t *testing.T) (*Array, Problem) {
	t.Helper()
	arr, err := GridLayout(8, 8, 10, 0)
	require.NoError(t, err)
	return arr, Problem{
		Foci:       []r3.Vec{{X: -30, Z: 80}, {X: 30, Z: 80}, {Y: 30, Z: 80}},
		Amplitudes: []float64{1, 0.5, 1},
		Wavelength: arr.Wavelength(),
	}
}

func TestHornUnevenTargets(t *testing.T) {
	for _, opt := range []*Horn{{Amplitude: Normalize}, {Amplitude: Normalize, Momentum: 0.9}} {
		arr, prob := unevenProblem(t)
		_, err := opt.Optimize(arr, prob)
		require.NoError(t, err)
		rep, err := Evaluate(arr, prob)
		require.NoError(t, err)
		got := rep.Achieved
		assert.InDelta(t, 0.5, got[1]/got[0], 0.02, "momentum %v: %v", opt.Momentum, got)
		assert.InDelta(t, 1.0, got[2]/got[0], 0.02, "momentum %v: %v", opt.Momentum, got)
	}
}

func TestLongUnevenTargets(t *testing.T) {
	arr, prob := unevenProblem(t)
	_, err := (&Long{Amplitude: Normalize}).Optimize(arr, prob)
	require.NoError(t, err)
	rep, err := Evaluate(arr, prob)
	require.NoError(t, err)
	got := rep.Achieved
	assert.Greater(t, got[1]/got[0], 0.3, "%v", got)
	assert.Less(t, got[1]/got[0], 0.75, "%v", got)
	assert.Greater(t, got[0]/got[2], 0.75, "%v", got)
	assert.Less(t, got[0]/got[2], 1.33, "%v", got)
}

func TestHornAndLongPhaseOnlyKeepTheWeakFocusWeak(t *testing.T) {
	for _, opt := range []Optimizer{&Horn{}, &Long{}} {
		t.Run(opt.Name(), func(t *testing.T) {
			arr, prob := unevenProblem(t)
			_, err := opt.Optimize(arr, prob)
			require.NoError(t, err)
			for j := 0; j < arr.Len(); j++ {
				require.Equal(t, arr.AmpMax(), arr.Amplitude(j))
			}
			rep, err := Evaluate(arr, prob)
			require.NoError(t, err)
			got := rep.Achieved
			assert.Less(t, got[1], math.Min(got[0], got[2]), "%v", got)
		})
	}
}

func TestHornAndLongSymmetricFoci(t *testing.T) {
	for _, opt := range []Optimizer{&Horn{Amplitude: Normalize}, &Long{Amplitude: Normalize}} {
		t.Run(opt.Name(), func(t *testing.T) {
			arr, err := GridLayout(8, 8, 10, 0)
			require.NoError(t, err)
			prob := Problem{
				Foci:       []r3.Vec{{X: -30, Z: 80}, {X: 30, Z: 80}},
				Amplitudes: []float64{1, 1},
				Wavelength: arr.Wavelength(),
			}
			_, err = opt.Optimize(arr, prob)
			require.NoError(t, err)
			rep, err := Evaluate(arr, prob)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, rep.Uniformity, 0.999)
			assert.Greater(t, rep.Mean, 0.0)
		})
	}
}

func TestHornMomentumFocusesTheSquare(t *testing.T) {
	arr, prob := squareProblem(t)
	res, err := (&Horn{Momentum: 0.9}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Status)
	v, err := arr.FieldAt(prob.Foci[0])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cmplx.Abs(v), 0.95*4/(5*math.Sqrt2))
}

func TestIterationCapKeepsTheBestDrive(t *testing.T) {
	for _, opt := range []Optimizer{&Horn{MaxIter: 1}, &LM{MaxIter: 1}, &GD{MaxIter: 1}} {
		t.Run(opt.Name(), func(t *testing.T) {
			arr, prob := unevenProblem(t)
			res, err := opt.Optimize(arr, prob)
			require.NoError(t, err)
			assert.Equal(t, HitIterationCap, res.Status)
			assert.Equal(t, 1, res.Iterations)
			assert.False(t, arr.InUse())
			// the array started silent and now carries the drive
			for j := 0; j < arr.Len(); j++ {
				assert.Equal(t, arr.AmpMax(), arr.Amplitude(j), "source %d", j)
			}
		})
	}
}

func TestLMZeroResidual(t *testing.T) {
	arr := NewArrayFromSources(Source{Amp: 1, Phase: 0.7})
	focus := r3.Vec{Z: 20}
	v, err := arr.FieldAt(focus)
	require.NoError(t, err)
	prob := Problem{Foci: []r3.Vec{focus}, Amplitudes: []float64{cmplx.Abs(v)}, Wavelength: arr.Wavelength()}

	res, err := (&LM{}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Status)
	assert.LessOrEqual(t, res.Iterations, 1)
	assert.InDelta(t, 0.7, arr.Phase(0), 1e-12)
}

func TestLMPhaseOnlyKeepsAmplitudes(t *testing.T) {
	arr := NewArrayFromSources(
		Source{Pos: r3.Vec{X: -5}, Amp: 0.5, Phase: 0.7},
		Source{Pos: r3.Vec{X: 5}, Amp: 0.5, Phase: 2.0},
	)
	focus := r3.Vec{X: 3, Z: 30}
	v, err := arr.FieldAt(focus)
	require.NoError(t, err)
	prob := Problem{Foci: []r3.Vec{focus}, Amplitudes: []float64{cmplx.Abs(v)}, Wavelength: arr.Wavelength()}

	res, err := (&LM{}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Status)
	assert.LessOrEqual(t, res.Iterations, 1)
	assert.InDelta(t, 0.7, arr.Phase(0), 1e-9)
	assert.InDelta(t, 2.0, arr.Phase(1), 1e-9)
	assert.Equal(t, 0.5, arr.Amplitude(0))
	assert.Equal(t, 0.5, arr.Amplitude(1))
}

func TestLMStallsWhenNoStepHelps(t *testing.T) {
	// the target is out of reach and every amplitude step is clamped away
	arr := NewArrayFromSources(Source{Amp: 1, Phase: 0.4})
	focus := r3.Vec{Z: 20}
	v, err := arr.FieldAt(focus)
	require.NoError(t, err)
	prob := Problem{Foci: []r3.Vec{focus}, Amplitudes: []float64{100 * cmplx.Abs(v)}, Wavelength: arr.Wavelength()}

	res, err := (&LM{IncludeAmp: true, LambdaMax: 1e3}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Equal(t, Stalled, res.Status)
	assert.InDelta(t, 0.4, arr.Phase(0), 1e-12)
	assert.Equal(t, 1.0, arr.Amplitude(0))
	assert.False(t, arr.InUse())
}

func TestLMFitsTwoFoci(t *testing.T) {
	prob := Problem{
		Foci:       []r3.Vec{{X: -15, Z: 80}, {X: 15, Z: 80}},
		Amplitudes: []float64{0.08, 0.08},
		Wavelength: DefaultWavelength,
	}
	for _, opt := range []*LM{{}, {IncludeAmp: true}, {ComplexTarget: true}} {
		arr, err := GridLayout(4, 4, 10, 0)
		require.NoError(t, err)
		res, err := opt.Optimize(arr, prob)
		require.NoError(t, err)
		rep, err := Evaluate(arr, prob)
		require.NoError(t, err)
		for i, e := range rep.RelError {
			assert.Less(t, math.Abs(e), 0.01, "focus %d, %+v, %v", i, opt, res)
		}
	}
}

func TestGDReducesTheResidual(t *testing.T) {
	prob := Problem{
		Foci:       []r3.Vec{{X: -15, Z: 80}, {X: 15, Z: 80}},
		Amplitudes: []float64{0.08, 0.08},
		Wavelength: DefaultWavelength,
	}
	residual := func(arr *Array) float64 {
		rep, err := Evaluate(arr, prob)
		require.NoError(t, err)
		sum := 0.0
		for i, a := range rep.Achieved {
			sum += (a - prob.Amplitudes[i]) * (a - prob.Amplitudes[i])
		}
		return sum
	}
	for _, opt := range []*GD{{}, {IncludeAmp: true}} {
		arr, err := GridLayout(4, 4, 10, 0)
		require.NoError(t, err)
		for j := 0; j < arr.Len(); j++ {
			arr.SetAmplitude(j, arr.AmpMax())
		}
		before := residual(arr)

		res, err := opt.Optimize(arr, prob)
		require.NoError(t, err)
		assert.Equal(t, "gd", res.Algorithm)
		assert.Less(t, residual(arr), before, "%+v, %v", opt, res)
		assert.LessOrEqual(t, 2*res.Objective, before*(1+1e-9))
		for j := 0; j < arr.Len(); j++ {
			assert.GreaterOrEqual(t, arr.Amplitude(j), 0.0)
			assert.LessOrEqual(t, arr.Amplitude(j), arr.AmpMax())
		}
	}
}

func TestGDTrace(t *testing.T) {
	var buf bytes.Buffer
	arr, prob := unevenProblem(t)
	_, err := (&GD{MaxIter: 2, Log: &Logger{Level: LogTrace, Msg: &buf}}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "gd: iter    1")
	assert.Contains(t, buf.String(), "gd: hit iteration cap after 2 iterations")
}

func TestGSPATSymmetricFoci(t *testing.T) {
	arr, err := GridLayout(4, 4, 10, 0)
	require.NoError(t, err)
	prob := Problem{
		Foci:       []r3.Vec{{X: -20, Z: 100}, {X: 20, Z: 100}, {Y: -20, Z: 100}, {Y: 20, Z: 100}},
		Amplitudes: []float64{1, 1, 1, 1},
		Wavelength: arr.Wavelength(),
	}
	res, err := (&GSPAT{}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Greater(t, res.Iterations, 0)

	rep, err := Evaluate(arr, prob)
	require.NoError(t, err)
	assert.Greater(t, rep.Mean, 0.0)
	assert.InDelta(t, 1.0, rep.Uniformity, 1e-6)
}

func TestGSPATAmplitudeModes(t *testing.T) {
	for _, mode := range []AmplitudeMode{PhaseOnly, Normalize, Clamp} {
		arr, prob := squareProblem(t)
		_, err := (&GSPAT{Amplitude: mode}).Optimize(arr, prob)
		require.NoError(t, err)
		top := 0.0
		for j := 0; j < arr.Len(); j++ {
			top = math.Max(top, arr.Amplitude(j))
		}
		if mode == Clamp {
			assert.LessOrEqual(t, top, 1.0)
		} else {
			assert.InDelta(t, 1.0, top, 1e-12, "mode %d", mode)
		}
	}
}

func TestOptimizerLogging(t *testing.T) {
	var buf bytes.Buffer
	arr, prob := squareProblem(t)
	_, err := (&Horn{Log: &Logger{Level: LogTrace, Msg: &buf}}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "horn: iter    1")
	assert.Contains(t, buf.String(), "horn: converged")

	buf.Reset()
	arr, prob = squareProblem(t)
	_, err = (&Long{Log: &Logger{Level: LogNoop, Msg: &buf}}).Optimize(arr, prob)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestByName(t *testing.T) {
	for _, name := range []string{"GS-PAT", "gspat", "Long", "lm", "GD", "horn", "greedy_brute_force"} {
		opt, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, opt)
	}
	opt, err := ByName("GreedyBruteForce")
	require.NoError(t, err)
	assert.Equal(t, "greedy", opt.Name())

	_, err = ByName("simplex")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, Names(), "gspat")
}

func TestCanonicalize(t *testing.T) {
	v := []complex128{cmplx.Rect(1, 0.3), cmplx.Rect(2, 1.1), cmplx.Rect(2, 2.5)}
	canonicalize(v)
	assert.InDelta(t, 2, real(v[1]), 1e-12)
	assert.Equal(t, 0.0, imag(v[1]))
	assert.InDelta(t, 2.5-1.1, cmplx.Phase(v[2]), 1e-12)
	assert.InDelta(t, 0.3-1.1, cmplx.Phase(v[0]), 1e-12)

	zero := []complex128{0, 0}
	canonicalize(zero)
	assert.Equal(t, []complex128{0, 0}, zero)
}

func TestFocalReport(t *testing.T) {
	arr := NewArrayFromSources(Source{Amp: 1})
	prob := Problem{Foci: []r3.Vec{{Z: 10}, {Z: 20}}, Amplitudes: []float64{0.1, 0}}
	rep, err := Evaluate(arr, prob)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, rep.Achieved[0], 1e-12)
	assert.InDelta(t, 0, rep.RelError[0], 1e-9)
	assert.True(t, math.IsNaN(rep.RelError[1]))
	assert.InDelta(t, 0.5, rep.Uniformity, 1e-12)
	assert.InDelta(t, 0.075, rep.Mean, 1e-12)

	var buf bytes.Buffer
	n, err := rep.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), "uniformity 0.5000")
}
