package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/bob-anderson-ok/holofocus/hologram"
	"gonum.org/v1/gonum/spatial/r3"
)

// Experiment holds everything read from the parameter file.
type Experiment struct {
	ShowInput        bool
	Title            string
	WindowSizePixels int
	OutputFolder     string

	// Array geometry and drive limits
	ArrayNx, ArrayNy int
	ArrayPitchMm     float64
	ArrayZMm         float64
	WavelengthMm     float64
	AmpMax           float64
	PistonRadiusMm   float64 // 0 means omnidirectional sources

	Foci           [][4]float64 // x, y, z in mm and the target amplitude
	PathToFociFile string

	// Optimizer selection. Zero values select the optimizer's own defaults.
	Optimizer          string
	Iterations         int
	Seed               int
	IncludeAmplitude   bool
	ComplexTarget      bool
	RandomizeOrder     bool
	PhaseDivisions     int
	AmplitudeDivisions int
	AmplitudeMode      string
	LogLevel           string

	// Sampled plane
	Plane            string
	PlaneOffsetMm    float64
	PlaneOffsetGiven bool
	PlaneHalfWidthMm float64
	ResolutionMm     float64
	FieldType        string
}

func defaultExperiment() Experiment {
	return Experiment{
		Title:            "Phased-array hologram",
		WindowSizePixels: 600,
		OutputFolder:     ".",
		ArrayNx:          18,
		ArrayNy:          18,
		ArrayPitchMm:     10,
		WavelengthMm:     hologram.DefaultWavelength,
		AmpMax:           1,
		Optimizer:        "long",
		AmplitudeMode:    "phase_only",
		LogLevel:         "last",
		Plane:            "xy",
		PlaneHalfWidthMm: 100,
		ResolutionMm:     1,
		FieldType:        "pressure",
	}
}

var fieldTypes = map[string]hologram.FieldType{
	"pressure":      hologram.Pressure,
	"power":         hologram.Power,
	"real_pressure": hologram.RealPressure,
}

var amplitudeModes = map[string]hologram.AmplitudeMode{
	"phase_only": hologram.PhaseOnly,
	"normalize":  hologram.Normalize,
	"clamp":      hologram.Clamp,
}

var logLevels = map[string]hologram.LogLevel{
	"none":  hologram.LogNoop,
	"last":  hologram.LogLast,
	"trace": hologram.LogTrace,
}

// planeAxes returns the two sampled axes of a plane name and the fixed one.
func planeAxes(name string) (first, second, fixed hologram.Axis, ok bool) {
	switch name {
	case "xy":
		return hologram.AxisX, hologram.AxisY, hologram.AxisZ, true
	case "xz":
		return hologram.AxisX, hologram.AxisZ, hologram.AxisY, true
	case "yz":
		return hologram.AxisY, hologram.AxisZ, hologram.AxisX, true
	}
	return 0, 0, 0, false
}

func (e *Experiment) makeArray() (*hologram.Array, error) {
	arr, err := hologram.GridLayout(e.ArrayNx, e.ArrayNy, e.ArrayPitchMm, e.ArrayZMm)
	if err != nil {
		return nil, err
	}
	if err := arr.SetWavelength(e.WavelengthMm); err != nil {
		return nil, err
	}
	if err := arr.SetAmpMax(e.AmpMax); err != nil {
		return nil, err
	}
	if e.PistonRadiusMm > 0 {
		arr.Directivity = hologram.Piston(arr.WaveNumber() * e.PistonRadiusMm)
	}
	return arr, nil
}

func (e *Experiment) makeProblem() hologram.Problem {
	prob := hologram.Problem{Wavelength: e.WavelengthMm}
	for _, f := range e.Foci {
		prob.Foci = append(prob.Foci, r3.Vec{X: f[0], Y: f[1], Z: f[2]})
		prob.Amplitudes = append(prob.Amplitudes, f[3])
	}
	return prob
}

// makeOptimizer returns the selected optimizer with the parameter file's
// settings applied. Progress goes to w.
func (e *Experiment) makeOptimizer(w io.Writer) (hologram.Optimizer, error) {
	opt, err := hologram.ByName(e.Optimizer)
	if err != nil {
		return nil, err
	}
	logger := &hologram.Logger{Level: logLevels[strings.ToLower(e.LogLevel)], Msg: w}
	mode := amplitudeModes[strings.ToLower(e.AmplitudeMode)]

	switch o := opt.(type) {
	case *hologram.GreedyBruteForce:
		o.PhaseDiv = e.PhaseDivisions
		o.AmpDiv = e.AmplitudeDivisions
		o.IncludeAmp = e.IncludeAmplitude
		o.Randomize = e.RandomizeOrder
		o.Seed = int64(e.Seed)
		o.MaxSweeps = e.Iterations
		o.Log = logger
	case *hologram.Horn:
		o.MaxIter = e.Iterations
		o.Amplitude = mode
		o.Log = logger
	case *hologram.Long:
		o.Amplitude = mode
		o.Log = logger
	case *hologram.LM:
		o.MaxIter = e.Iterations
		o.IncludeAmp = e.IncludeAmplitude
		o.ComplexTarget = e.ComplexTarget
		o.Log = logger
	case *hologram.GD:
		o.MaxIter = e.Iterations
		o.IncludeAmp = e.IncludeAmplitude
		o.Log = logger
	case *hologram.GSPAT:
		o.Iterations = e.Iterations
		o.Amplitude = mode
		o.Log = logger
	default:
		return nil, fmt.Errorf("no parameter mapping for optimizer %q", opt.Name())
	}
	return opt, nil
}

// makeGrid returns the builder for the sampled plane, centred on the
// centroid of the foci.
func (e *Experiment) makeGrid() (*hologram.GridBuilder, error) {
	first, second, fixed, ok := planeAxes(e.Plane)
	if !ok {
		return nil, fmt.Errorf("unknown plane %q", e.Plane)
	}
	if len(e.Foci) == 0 {
		return nil, fmt.Errorf("no foci to centre the plane on")
	}
	var centre [3]float64
	for _, f := range e.Foci {
		for k := 0; k < 3; k++ {
			centre[k] += f[k] / float64(len(e.Foci))
		}
	}
	offset := e.Foci[0][fixed]
	if e.PlaneOffsetGiven {
		offset = e.PlaneOffsetMm
	}
	h := e.PlaneHalfWidthMm
	lo := func(a hologram.Axis) float64 { return snap(centre[a]-h, e.ResolutionMm) }
	return hologram.NewGridBuilder().
		Range(first, lo(first), lo(first)+2*h).
		Range(second, lo(second), lo(second)+2*h).
		At(fixed, offset).
		Resolution(e.ResolutionMm), nil
}

// snap rounds v down to a multiple of step so that grid points land on round coordinates.
func snap(v, step float64) float64 {
	return math.Floor(v/step+1e-9) * step
}

func (e *Experiment) fieldType() hologram.FieldType {
	return fieldTypes[strings.ToLower(e.FieldType)]
}
