package main

import (
	"image"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bob-anderson-ok/holofocus/hologram"
)

func TestReshape1DTo2D(t *testing.T) {
	m, err := Reshape1DTo2D([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, m)

	_, err = Reshape1DTo2D([]float64{1, 2, 3}, 2, 2)
	assert.EqualError(t, err, "size mismatch: have 3, want 4")
}

func TestCheckRectangular(t *testing.T) {
	h, w, err := checkRectangular([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 3, h)
	assert.Equal(t, 2, w)

	_, _, err = checkRectangular(nil)
	assert.Error(t, err)
	_, _, err = checkRectangular([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestMatrixToGray16Data(t *testing.T) {
	m := [][]float64{{0, 1.5, -2}, {1000, math.NaN(), math.Inf(1)}}
	img, err := MatrixToGray16Data(m, 100)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(150), img.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(0), img.Gray16At(2, 0).Y, "negative values clamp to 0")
	assert.Equal(t, uint16(65535), img.Gray16At(0, 1).Y, "large values clamp to full scale")
	assert.Equal(t, uint16(0), img.Gray16At(1, 1).Y)
	assert.Equal(t, uint16(0), img.Gray16At(2, 1).Y)

	_, err = MatrixToGray16Data(m, 0)
	assert.Error(t, err)
}

func TestMatrixToGrayViewPercentile(t *testing.T) {
	m := [][]float64{{0, 1, 2}, {3, 4, math.NaN()}}
	img, err := MatrixToGrayViewPercentile(m, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(64), img.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(0), img.GrayAt(2, 1).Y)

	flat, err := MatrixToGrayViewPercentile([][]float64{{7, 7}}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), flat.GrayAt(1, 0).Y)

	_, err = MatrixToGrayViewPercentile(m, 50, 50)
	assert.Error(t, err)
	_, err = MatrixToGrayViewPercentile([][]float64{{math.NaN()}}, 0, 100)
	assert.Error(t, err)
}

func TestFlipRows(t *testing.T) {
	assert.Equal(t, [][]float64{{3}, {2}, {1}}, flipRows([][]float64{{1}, {2}, {3}}))
}

func TestPhaseMatrixFollowsLayoutOrder(t *testing.T) {
	arr, err := hologram.GridLayout(3, 2, 10, 0)
	require.NoError(t, err)
	for j := 0; j < arr.Len(); j++ {
		arr.SetPhase(j, 0.5*float64(j))
	}
	m, err := phaseMatrix(arr, 3, 2)
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, []float64{0, 0.5, 1}, m[0])
	assert.Equal(t, []float64{1.5, 2, 2.5}, m[1])
	assert.Less(t, arr.Position(0).Y, arr.Position(3).Y, "rows are rows of constant y")
}

func TestSavePNG(t *testing.T) {
	img, err := MatrixToGrayViewPercentile([][]float64{{0, 1}, {2, 3}}, 0, 100)
	require.NoError(t, err)
	name := filepath.Join(t.TempDir(), "view.png")
	require.NoError(t, SavePNG(name, img))
	assert.FileExists(t, name)

	assert.Error(t, SavePNG(filepath.Join(t.TempDir(), "missing", "view.png"), img))
}
