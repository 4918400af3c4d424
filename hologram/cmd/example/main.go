// Example program running every optimizer on the same small problem:
// four sources at the corners of a 10 mm square and a single focus at the
// centre of the square.
//
// Usage:
//
//	go run main.go
//
// For each optimizer the program prints the run status, the field magnitude
// at the focus, and the magnitude the silent starting array produces there.
package main

import (
	"fmt"
	"log"
	"math/cmplx"
	"os"
	"time"

	"github.com/bob-anderson-ok/holofocus/hologram"
	"gonum.org/v1/gonum/spatial/r3"
)

func newSquare() *hologram.Array {
	arr, err := hologram.GridLayout(2, 2, 10, 0)
	if err != nil {
		log.Fatalf("Failed to build the array: %v", err)
	}
	return arr
}

func main() {
	fmt.Println("Four-corner focusing example")
	fmt.Println("============================")

	focus := r3.Vec{}
	baseline, err := newSquare().FieldAt(focus)
	if err != nil {
		log.Fatalf("Failed to evaluate the baseline: %v", err)
	}
	fmt.Printf("\nBaseline |F| at the focus: %.6f\n", cmplx.Abs(baseline))

	for _, name := range hologram.Names() {
		if name == "greedybruteforce" {
			continue // alias of greedy
		}
		opt, err := hologram.ByName(name)
		if err != nil {
			log.Fatalf("Failed to select %s: %v", name, err)
		}
		arr := newSquare()
		prob := hologram.Problem{
			Foci:       []r3.Vec{focus},
			Amplitudes: []float64{1},
			Wavelength: arr.Wavelength(),
		}
		start := time.Now()
		res, err := opt.Optimize(arr, prob)
		if err != nil {
			log.Fatalf("%s failed: %v", name, err)
		}
		rep, err := hologram.Evaluate(arr, prob)
		if err != nil {
			log.Fatalf("Failed to evaluate %s: %v", name, err)
		}
		fmt.Printf("\n%-6s %s after %d iterations (%s)\n", name, res.Status, res.Iterations, time.Since(start))
		if _, err := rep.WriteTo(os.Stdout); err != nil {
			log.Fatal(err)
		}
	}
}
