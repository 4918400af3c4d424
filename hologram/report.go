package hologram

import (
	"fmt"
	"io"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// FocalReport compares the field an array produces at each focus with the
// target amplitudes of a Problem.
type FocalReport struct {
	Achieved []float64 // |F| at each focus
	Target   []float64
	// RelError[i] = (|Fᵢ| − aᵢ)/aᵢ, or NaN where the target is zero.
	RelError []float64
	// Mean and standard deviation of |F| over the foci.
	Mean, StdDev float64
	// Uniformity is min|F| / max|F|, 1 for a perfectly even pattern.
	Uniformity float64
}

// Evaluate measures the focal field of arr for prob using the array's own
// wavenumber and directivity.
func Evaluate(arr *Array, prob Problem) (*FocalReport, error) {
	if len(prob.Foci) != len(prob.Amplitudes) {
		return nil, fmt.Errorf("%w: %d foci but %d target amplitudes", ErrConfiguration, len(prob.Foci), len(prob.Amplitudes))
	}
	rep := &FocalReport{
		Achieved: make([]float64, len(prob.Foci)),
		Target:   append([]float64(nil), prob.Amplitudes...),
		RelError: make([]float64, len(prob.Foci)),
	}
	lo, hi := math.Inf(1), 0.0
	for i, f := range prob.Foci {
		v, err := arr.FieldAt(f)
		if err != nil {
			return nil, fmt.Errorf("focus %d: %w", i, err)
		}
		a := cmplx.Abs(v)
		rep.Achieved[i] = a
		rep.RelError[i] = math.NaN()
		if t := prob.Amplitudes[i]; t > 0 {
			rep.RelError[i] = (a - t) / t
		}
		lo, hi = math.Min(lo, a), math.Max(hi, a)
	}
	if len(rep.Achieved) > 0 {
		rep.Mean, rep.StdDev = stat.MeanStdDev(rep.Achieved, nil)
		if len(rep.Achieved) == 1 {
			rep.StdDev = 0
		}
	}
	if hi > 0 {
		rep.Uniformity = lo / hi
	}
	return rep, nil
}

// WriteTo prints one line per focus followed by the summary.
func (r *FocalReport) WriteTo(w io.Writer) (int64, error) {
	var total int64
	write := func(format string, a ...any) error {
		n, err := fmt.Fprintf(w, format, a...)
		total += int64(n)
		return err
	}
	for i, a := range r.Achieved {
		if err := write("focus %2d: |F| = %.6g  target %.6g  rel.err % .3e\n", i, a, r.Target[i], r.RelError[i]); err != nil {
			return total, err
		}
	}
	err := write("mean %.6g  std %.3g  uniformity %.4f\n", r.Mean, r.StdDev, r.Uniformity)
	return total, err
}
