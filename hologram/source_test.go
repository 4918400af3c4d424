package hologram

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestWrapPhase(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{1, 1},
		{2 * math.Pi, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{5 * math.Pi, math.Pi},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tt := range tests {
		got := WrapPhase(tt.in)
		assert.InDelta(t, tt.want, got, 1e-12, "WrapPhase(%v)", tt.in)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Less(t, got, 2*math.Pi)
	}
	// the smallest negative phase must not wrap to exactly 2π
	assert.Less(t, WrapPhase(-1e-300), 2*math.Pi)
}

func TestArraySettersKeepCanonicalRanges(t *testing.T) {
	arr := NewArray(2)
	require.Equal(t, 2, arr.Len())
	assert.Equal(t, Source{}, arr.Source(0))

	arr.SetAmplitude(0, 3)
	assert.Equal(t, 1.0, arr.Amplitude(0))
	arr.SetAmplitude(0, -1)
	assert.Equal(t, 0.0, arr.Amplitude(0))
	arr.SetAmplitude(0, math.NaN())
	assert.Equal(t, 0.0, arr.Amplitude(0))

	arr.SetPhase(1, -math.Pi)
	assert.InDelta(t, math.Pi, arr.Phase(1), 1e-12)
	arr.SetPhase(1, 7*math.Pi)
	assert.InDelta(t, math.Pi, arr.Phase(1), 1e-12)

	arr.Add(Source{Amp: 2, Phase: -0.5})
	assert.Equal(t, 1.0, arr.Amplitude(2))
	assert.InDelta(t, 2*math.Pi-0.5, arr.Phase(2), 1e-12)

	require.NoError(t, arr.SetAmpMax(0.5))
	assert.Equal(t, 0.5, arr.Amplitude(2))
	assert.True(t, errors.Is(arr.SetAmpMax(0), ErrConfiguration))
}

func TestArrayWavelength(t *testing.T) {
	arr := NewArray(1)
	assert.InDelta(t, DefaultWavelength, arr.Wavelength(), 1e-12)
	require.NoError(t, arr.SetWavelength(4))
	assert.InDelta(t, math.Pi/2, arr.WaveNumber(), 1e-12)
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, arr.SetWavelength(bad), ErrConfiguration)
		assert.ErrorIs(t, arr.SetWaveNumber(bad), ErrConfiguration)
	}
}

func TestArrayResizeAndCentroid(t *testing.T) {
	arr := NewArrayFromSources(
		Source{Pos: r3.Vec{X: -1}},
		Source{Pos: r3.Vec{X: 1, Y: 2}},
	)
	assert.Equal(t, r3.Vec{X: 0, Y: 1}, arr.Centroid())

	arr.Resize(4)
	assert.Equal(t, 4, arr.Len())
	assert.Equal(t, Source{}, arr.Source(3))
	arr.Resize(1)
	assert.Equal(t, []Source{{Pos: r3.Vec{X: -1}}}, arr.Sources())
	assert.Equal(t, r3.Vec{}, NewArray(0).Centroid())
}

func TestArrayExclusiveUse(t *testing.T) {
	arr := NewArray(1)
	require.NoError(t, arr.acquire())
	assert.True(t, arr.InUse())
	assert.ErrorIs(t, arr.acquire(), ErrExclusiveAccess)
	arr.release()
	assert.False(t, arr.InUse())
	assert.NoError(t, arr.acquire())
}

func TestGridLayout(t *testing.T) {
	arr, err := GridLayout(3, 2, 10, 5)
	require.NoError(t, err)
	require.Equal(t, 6, arr.Len())
	assert.Equal(t, r3.Vec{X: -10, Y: -5, Z: 5}, arr.Position(0))
	assert.Equal(t, r3.Vec{X: 0, Y: -5, Z: 5}, arr.Position(1))
	assert.Equal(t, r3.Vec{X: 10, Y: 5, Z: 5}, arr.Position(5))
	c := arr.Centroid()
	assert.InDelta(t, 0, c.X, 1e-12)
	assert.InDelta(t, 0, c.Y, 1e-12)
	assert.InDelta(t, 5, c.Z, 1e-12)

	single, err := GridLayout(1, 1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{}, single.Position(0))

	_, err = GridLayout(0, 2, 10, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = GridLayout(2, 2, -1, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
}
