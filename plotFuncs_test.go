package main

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/bob-anderson-ok/holofocus/hologram"
)

func TestNiceStep(t *testing.T) {
	tests := []struct{ raw, want float64 }{
		{0, 1},
		{-3, 1},
		{1.2, 1},
		{2.7, 2},
		{6, 5},
		{8, 10},
		{0.031, 0.02},
		{240, 200},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, niceStep(tt.raw), 1e-12, "raw %v", tt.raw)
	}
}

func TestStepTicks(t *testing.T) {
	ticks := StepTicks{Step: 5, Format: "%.0f"}.Ticks(-7, 11)
	require.Len(t, ticks, 4)
	assert.Equal(t, -5.0, ticks[0].Value)
	assert.Equal(t, "10", ticks[3].Label)

	assert.Empty(t, StepTicks{}.Ticks(0, 1))
}

// focusedPlane returns the pressure on a 41 × 41 mm xy plane through a
// single focus 60 mm above an 8 × 8 array.
func focusedPlane(t *testing.T) (*hologram.ScalarField, *hologram.FocalReport) {
	t.Helper()
	arr, err := hologram.GridLayout(8, 8, 10, 0)
	require.NoError(t, err)
	prob := hologram.Problem{
		Foci:       []r3.Vec{{X: 0, Y: 0, Z: 60}},
		Amplitudes: []float64{1},
		Wavelength: hologram.DefaultWavelength,
	}
	_, err = (&hologram.Horn{}).Optimize(arr, prob)
	require.NoError(t, err)
	rep, err := hologram.Evaluate(arr, prob)
	require.NoError(t, err)

	sf, err := hologram.NewGridBuilder().
		Range(hologram.AxisX, -20, 20).
		Range(hologram.AxisY, -20, 20).
		At(hologram.AxisZ, 60).
		Resolution(1).
		Generate(arr, hologram.Pressure)
	require.NoError(t, err)
	return sf, rep
}

func TestPlotsAreSaved(t *testing.T) {
	sf, rep := focusedPlane(t)
	dir := t.TempDir()

	heat := filepath.Join(dir, "heat.png")
	require.NoError(t, makeHeatMapPlot(sf, [][2]float64{{0, 0}}, "test", heat))
	assert.FileExists(t, heat)

	bars := filepath.Join(dir, "bars.png")
	require.NoError(t, makeFocalBarChart(rep, bars))
	assert.FileExists(t, bars)
}

func TestWriteProfile(t *testing.T) {
	sf, _ := focusedPlane(t)
	rows, err := sf.Rows()
	require.NoError(t, err)
	display, err := MatrixToGrayViewPercentile(flipRows(rows), 1, 99.9)
	require.NoError(t, err)

	dir := t.TempDir()
	out := func(name string) string { return filepath.Join(dir, name) }
	plotFile, err := writeProfile(sf, rows, display, [][2]float64{{0, 0}}, out)
	require.NoError(t, err)
	assert.Equal(t, out("profile.png"), plotFile)
	assert.FileExists(t, plotFile)
	assert.FileExists(t, out("field8bitAnnotated.png"))
}

func TestWriteProfileNeedsPlane(t *testing.T) {
	arr := hologram.NewArrayFromSources(hologram.Source{Amp: 1})
	sf, err := hologram.NewGridBuilder().
		Range(hologram.AxisX, -5, 5).
		At(hologram.AxisY, 0).
		At(hologram.AxisZ, 50).
		Resolution(1).
		Generate(arr, hologram.Pressure)
	require.NoError(t, err)
	_, err = writeProfile(sf, nil, nil, [][2]float64{{0, 0}}, func(s string) string { return s })
	assert.Error(t, err)
}

func TestCheckDataPNG(t *testing.T) {
	values := [][]float64{{0, 0.5, 0.25}, {2, -1, math.NaN()}}
	scale := 65535.0
	data, err := MatrixToGray16Data(values, scale)
	require.NoError(t, err)
	name := filepath.Join(t.TempDir(), "field16bit.png")
	require.NoError(t, SavePNG(name, data))

	worst, err := checkDataPNG(name, scale, values)
	require.NoError(t, err)
	assert.LessOrEqual(t, worst, 0.5/scale)

	_, err = checkDataPNG(name, scale, values[:1])
	assert.ErrorContains(t, err, "has 2 rows, want 1")
	_, err = checkDataPNG(filepath.Join(t.TempDir(), "missing.png"), scale, values)
	assert.Error(t, err)
}
