package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"sort"

	"github.com/bob-anderson-ok/holofocus/hologram"
	"gonum.org/v1/gonum/stat"
)

func checkRectangular(m [][]float64) (h, w int, err error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return 0, 0, errors.New("empty matrix")
	}
	h, w = len(m), len(m[0])
	for y := 1; y < h; y++ {
		if len(m[y]) != w {
			return 0, 0, errors.New("ragged matrix")
		}
	}
	return h, w, nil
}

// MatrixToGray16Data -------------------- Data PNG (Gray16, fixed physical scaling) --------------------
// Mapping: Y16 = round(v * scale), clamped to [0, 65535]. Non-finite values are written as 0.
func MatrixToGray16Data(m [][]float64, scale float64) (*image.Gray16, error) {
	h, w, err := checkRectangular(m)
	if err != nil {
		return nil, err
	}
	if !(scale > 0) {
		return nil, errors.New("scale must be > 0")
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			v := m[y][x]
			u := 0.0
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				u = math.Max(0, math.Min(65535, math.Round(v*scale)))
			}
			y16 := uint16(u)

			// Gray16 Pix is big-endian per pixel: high then low
			i := row + 2*x
			img.Pix[i] = uint8(y16 >> 8)
			img.Pix[i+1] = uint8(y16)
		}
	}
	return img, nil
}

// MatrixToGrayViewPercentile -------------------- View PNG (Gray8, auto-stretch) --------------------
// Percentile stretch: the pLow to pHigh percentiles of the finite values map
// to 0..255 and everything outside is clamped.
func MatrixToGrayViewPercentile(m [][]float64, pLow, pHigh float64) (*image.Gray, error) {
	h, w, err := checkRectangular(m)
	if err != nil {
		return nil, err
	}
	if !(0 <= pLow && pLow < pHigh && pHigh <= 100) {
		return nil, errors.New("percentiles must satisfy 0 <= pLow < pHigh <= 100")
	}

	vals := make([]float64, 0, h*w)
	for _, row := range m {
		for _, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return nil, errors.New("matrix has no finite values")
	}
	sort.Float64s(vals)

	lo := stat.Quantile(pLow/100, stat.LinInterp, vals, nil)
	hi := stat.Quantile(pHigh/100, stat.LinInterp, vals, nil)
	if hi == lo {
		hi = lo + 1 // avoid divide-by-zero; image becomes mostly constant
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			v := m[y][x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.Pix[row+x] = 0
				continue
			}
			t := math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
			img.Pix[row+x] = uint8(math.Round(t * 255.0))
		}
	}
	return img, nil
}

// flipRows returns the rows of m in reverse order so that the largest
// coordinate of the second axis is drawn at the top of an image.
func flipRows(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[len(m)-1-i] = row
	}
	return out
}

// SavePNG writes img to filename.
func SavePNG(filename string, img image.Image) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}

func Reshape1DTo2D(v []float64, rows, cols int) ([][]float64, error) {
	if len(v) != rows*cols {
		return nil, fmt.Errorf("size mismatch: have %d, want %d", len(v), rows*cols)
	}

	m := make([][]float64, rows)
	k := 0
	for i := 0; i < rows; i++ {
		m[i] = make([]float64, cols)
		copy(m[i], v[k:k+cols])
		k += cols
	}
	return m, nil
}

// phaseMatrix returns the drive phases of an nx × ny grid layout as rows of
// constant y, in the order GridLayout creates the sources.
func phaseMatrix(arr *hologram.Array, nx, ny int) ([][]float64, error) {
	phases := make([]float64, arr.Len())
	for j := range phases {
		phases[j] = arr.Phase(j)
	}
	return Reshape1DTo2D(phases, ny, nx)
}
