// Example program for the profile package. It focuses an 18×18 array on two
// points, samples the focal plane, and then:
//  1. extracts the pressure profile along the line through both foci
//  2. measures the focal spots on it (peak and -3 dB width)
//  3. plots the profile with the spots marked
//  4. draws the line on an 8-bit display image of the plane
//
// Usage:
//
//	go run main.go
//
// The plots are written to the current directory.
package main

import (
	"fmt"
	"image"
	"log"
	"math"

	"github.com/bob-anderson-ok/holofocus/hologram"
	"github.com/bob-anderson-ok/holofocus/profile"
	"gonum.org/v1/gonum/spatial/r3"
)

func main() {
	fmt.Println("Focal profile example")
	fmt.Println("=====================")

	arr, err := hologram.GridLayout(18, 18, 10, 0)
	if err != nil {
		log.Fatalf("Failed to build the array: %v", err)
	}
	prob := hologram.Problem{
		Foci:       []r3.Vec{{X: -20, Z: 150}, {X: 20, Z: 150}},
		Amplitudes: []float64{1, 1},
		Wavelength: arr.Wavelength(),
	}
	res, err := (&hologram.GSPAT{}).Optimize(arr, prob)
	if err != nil {
		log.Fatalf("Optimizer failed: %v", err)
	}
	fmt.Printf("\n%s %s after %d iterations\n", res.Algorithm, res.Status, res.Iterations)

	sf, err := hologram.NewGridBuilder().
		Range(hologram.AxisX, -60, 60).
		Range(hologram.AxisY, -60, 60).
		At(hologram.AxisZ, 150).
		Resolution(0.5).
		Generate(arr, hologram.Pressure)
	if err != nil {
		log.Fatalf("Failed to sample the focal plane: %v", err)
	}
	rows, err := sf.Rows()
	if err != nil {
		log.Fatal(err)
	}
	plane, err := profile.PlaneOf(sf)
	if err != nil {
		log.Fatal(err)
	}

	line, err := profile.NewLine(plane, -60, 0, 60, 0)
	if err != nil {
		log.Fatalf("Failed to place the profile line: %v", err)
	}
	fmt.Printf("\nProfile line from pixel (%.1f, %.1f) to (%.1f, %.1f), %d samples\n",
		line.StartX, line.StartY, line.EndX, line.EndY, len(line.Samples))

	curve := profile.Extract(rows, line)
	spots := profile.FindSpots(curve, 0.5, profile.HalfPower)
	fmt.Printf("\nFound %d focal spots:\n", len(spots))
	for i, s := range spots {
		fmt.Printf("  Spot %d: %.1f mm along the line, peak %.4f, -3 dB width %.2f mm\n", i+1, s.Distance, s.Peak, s.Width)
	}

	outputPlot := "profile_plot.png"
	if err := profile.SaveProfilePlot(outputPlot, curve, spots, "Pressure through both foci", 1200, 500); err != nil {
		log.Printf("Could not save the profile plot: %v\n", err)
	} else {
		fmt.Printf("\nSaved profile plot to %s\n", outputPlot)
	}

	top, _ := sf.Max()
	display := image.NewGray(image.Rect(0, 0, plane.Cols, plane.Rows))
	for y, row := range rows {
		for x, v := range row {
			display.Pix[y*display.Stride+x] = uint8(math.Round(255 * v / top))
		}
	}
	outputAnnotated := "annotated_plane.png"
	if err := profile.SaveImageToFile(outputAnnotated, profile.DrawLineOnImage(display, line)); err != nil {
		log.Printf("Could not save the annotated image: %v\n", err)
	} else {
		fmt.Printf("Saved annotated image to %s\n", outputAnnotated)
	}

	fmt.Println("\nDone!")
}
