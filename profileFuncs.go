package main

import (
	"fmt"
	"image"
	"math"

	"github.com/bob-anderson-ok/holofocus/hologram"
	"github.com/bob-anderson-ok/holofocus/profile"
)

// writeProfile cuts the sampled plane along the line through the first two
// in-plane foci (or along the first axis through a single focus), saves the
// profile plot and an annotated display image, and returns the plot file name.
func writeProfile(sf *hologram.ScalarField, rows [][]float64, display *image.Gray, foci [][2]float64, out func(string) string) (string, error) {
	plane, err := profile.PlaneOf(sf)
	if err != nil {
		return "", err
	}
	a := foci[0]
	dir := [2]float64{1, 0}
	if len(foci) > 1 {
		d := [2]float64{foci[1][0] - a[0], foci[1][1] - a[1]}
		if n := math.Hypot(d[0], d[1]); n > 0 {
			dir = [2]float64{d[0] / n, d[1] / n}
		}
	}
	// Extend well past the plane on both sides and let NewLine clip
	reach := 2 * math.Hypot(float64(plane.Cols), float64(plane.Rows)) * plane.Resolution
	line, err := profile.NewLine(plane,
		a[0]-reach*dir[0], a[1]-reach*dir[1],
		a[0]+reach*dir[0], a[1]+reach*dir[1])
	if err != nil {
		return "", err
	}

	curve := profile.Extract(rows, line)
	spots := profile.FindSpots(curve, 0.5, profile.HalfPower)
	fmt.Printf("\nFound %d focal spots along the profile line:\n", len(spots))
	for i, s := range spots {
		fmt.Printf("  Spot %d: %.1f mm along the line, peak %.4g, -3 dB width %.2f mm\n", i+1, s.Distance, s.Peak, s.Width)
	}

	plotFile := out("profile.png")
	if err := profile.SaveProfilePlot(plotFile, curve, spots, "Profile through the foci", 1200, 500); err != nil {
		return "", err
	}

	// The display image is flipped vertically relative to the rows
	flipped := *line
	flipped.StartY = float64(plane.Rows-1) - line.StartY
	flipped.EndY = float64(plane.Rows-1) - line.EndY
	if err := SavePNG(out("field8bitAnnotated.png"), profile.DrawLineOnImage(display, &flipped)); err != nil {
		return "", err
	}
	return plotFile, nil
}

// checkDataPNG reads the 16-bit data image back and returns the largest
// difference from the values it was written from. Values the image cannot
// hold (negative or not finite) are skipped and values above full scale are
// compared at full scale.
func checkDataPNG(filename string, scale float64, values [][]float64) (float64, error) {
	back, err := profile.LoadGray16PNG(filename, scale)
	if err != nil {
		return 0, err
	}
	if len(back) != len(values) {
		return 0, fmt.Errorf("%s has %d rows, want %d", filename, len(back), len(values))
	}
	top := 65535 / scale
	worst := 0.0
	for y, row := range values {
		if len(back[y]) != len(row) {
			return 0, fmt.Errorf("%s row %d has %d pixels, want %d", filename, y, len(back[y]), len(row))
		}
		for x, v := range row {
			if !(v >= 0) || math.IsInf(v, 0) {
				continue
			}
			worst = math.Max(worst, math.Abs(back[y][x]-math.Min(v, top)))
		}
	}
	return worst, nil
}
