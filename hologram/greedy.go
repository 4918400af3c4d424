package hologram

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
)

// GreedyBruteForce visits the sources one at a time and, holding all other
// sources fixed, tries every discretized phase (and amplitude) for the
// visited source, keeping the combination that best matches the target
// amplitudes. Sweeps over all sources repeat until a sweep stops improving
// the objective −Σᵢ(aᵢ − |Fᵢ|)².
//
// Candidates are enumerated phase-major (phase 0 first, then increasing
// amplitude within each phase); ties go to the earliest candidate, and a
// candidate replaces the current setting only when it is strictly better.
// With PhaseDiv == 1 the phase of each source is kept as it is, so a
// phase-only run with PhaseDiv == 1 leaves the array untouched.
//
// Reference: the greedy brute-force search of Suzuki et al.,
// "Radiation pressure field reconstruction for ultrasound midair haptics
// by greedy algorithm with brute-force search", IEEE ToH 2021.
type GreedyBruteForce struct {
	PhaseDiv   int     // Number of phase levels in [0, 2π). Default 16
	AmpDiv     int     // Number of amplitude levels in (0, AmpMax] when IncludeAmp. Default 10
	IncludeAmp bool    // Search amplitude as well as phase
	Randomize  bool    // Shuffle the visiting order of every sweep
	Seed       int64   // Seed of the visiting order shuffle
	MaxSweeps  int     // Sweep cap. Default 8
	Tolerance  float64 // Minimum objective gain of a sweep to continue. Default 0
	Log        *Logger
}

func (o *GreedyBruteForce) Name() string { return "greedy" }

func (o *GreedyBruteForce) settings() (phaseDiv, ampDiv, sweeps int, err error) {
	phaseDiv, ampDiv, sweeps = cmp.Or(o.PhaseDiv, 16), cmp.Or(o.AmpDiv, 10), cmp.Or(o.MaxSweeps, 8)
	switch {
	case phaseDiv < 1:
		err = fmt.Errorf("%w: phase divisions %d must be at least 1", ErrConfiguration, o.PhaseDiv)
	case o.IncludeAmp && ampDiv < 1:
		err = fmt.Errorf("%w: amplitude divisions %d must be at least 1", ErrConfiguration, o.AmpDiv)
	case sweeps < 1:
		err = fmt.Errorf("%w: sweep cap %d must be at least 1", ErrConfiguration, o.MaxSweeps)
	case !(o.Tolerance >= 0):
		err = fmt.Errorf("%w: tolerance %v must be non-negative", ErrConfiguration, o.Tolerance)
	}
	return phaseDiv, ampDiv, sweeps, err
}

func (o *GreedyBruteForce) Optimize(arr *Array, prob Problem) (Result, error) {
	res := Result{Algorithm: o.Name()}
	phaseDiv, ampDiv, sweeps, err := o.settings()
	if err != nil {
		return res, err
	}
	if err := begin(arr, prob); err != nil {
		return res, err
	}
	defer arr.release()

	n := arr.Len()
	G := transferMatrix(arr, prob)
	phases := make([]float64, n)
	amps := make([]float64, n)
	for j, s := range arr.sources {
		phases[j], amps[j] = s.Phase, s.Amp
		if !o.IncludeAmp {
			amps[j] = arr.ampMax
		}
	}
	q := make([]complex128, n)
	for j := range q {
		q[j] = cmplx.Rect(amps[j], phases[j])
	}
	F := focalField(G, q)
	obj := matchObjective(F, prob.Amplitudes)

	if phaseDiv == 1 && !o.IncludeAmp {
		res.Status, res.Objective = Converged, obj
		o.Log.last(res)
		return res, nil
	}

	phaseLevels := make([]float64, phaseDiv)
	for k := range phaseLevels {
		phaseLevels[k] = 2 * math.Pi * float64(k) / float64(phaseDiv)
	}
	ampLevels := []float64{arr.ampMax}
	if o.IncludeAmp {
		ampLevels = make([]float64, ampDiv)
		for k := range ampLevels {
			ampLevels[k] = arr.ampMax * float64(k+1) / float64(ampDiv)
		}
	}

	order := make([]int, n)
	for j := range order {
		order[j] = j
	}
	rng := rand.New(rand.NewSource(o.Seed))

	rest := make([]complex128, len(F))
	trial := make([]complex128, len(F))
	res.Status = HitIterationCap
	for sweep := 1; sweep <= sweeps; sweep++ {
		if o.Randomize {
			rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
		}
		before := obj
		for _, j := range order {
			for i := range F {
				rest[i] = F[i] - G[i][j]*q[j]
			}
			current := candidateObjective(rest, G, j, q[j], prob.Amplitudes, trial)
			bestVal, bestPhase, bestAmp := math.Inf(-1), phases[j], amps[j]
			for _, ph := range phaseLevels {
				if phaseDiv == 1 {
					ph = phases[j]
				}
				for _, am := range ampLevels {
					v := candidateObjective(rest, G, j, cmplx.Rect(am, ph), prob.Amplitudes, trial)
					if v > bestVal {
						bestVal, bestPhase, bestAmp = v, ph, am
					}
				}
			}
			if bestVal > current {
				phases[j], amps[j] = bestPhase, bestAmp
				q[j] = cmplx.Rect(bestAmp, bestPhase)
			}
			for i := range F {
				F[i] = rest[i] + G[i][j]*q[j]
			}
		}
		obj = matchObjective(F, prob.Amplitudes)
		res.Iterations = sweep
		o.Log.trace(res.Algorithm, sweep, obj)
		if obj-before <= o.Tolerance {
			res.Status = Converged
			break
		}
	}

	for j := 0; j < n; j++ {
		arr.SetPhase(j, phases[j])
		arr.SetAmplitude(j, amps[j])
	}
	res.Objective = obj
	o.Log.last(res)
	return res, nil
}

// matchObjective returns −Σᵢ(aᵢ − |Fᵢ|)².
func matchObjective(F []complex128, target []float64) float64 {
	sum := 0.0
	for i, f := range F {
		d := target[i] - cmplx.Abs(f)
		sum += d * d
	}
	return -sum
}

// candidateObjective scores drive c for source j on top of the focal field
// of all other sources. trial is scratch space.
func candidateObjective(rest []complex128, G [][]complex128, j int, c complex128, target []float64, trial []complex128) float64 {
	for i := range rest {
		trial[i] = rest[i] + G[i][j]*c
	}
	return matchObjective(trial, target)
}
