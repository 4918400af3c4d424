package main

import (
	"fmt"
	"image/color"
	"math"

	"github.com/bob-anderson-ok/holofocus/hologram"
	"gonum.org/v1/plot"

	// Liberation fonts register automatically on import
	_ "gonum.org/v1/plot/font/liberation"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

type StepTicks struct {
	Step   float64
	Format string
}

func (t StepTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	if !(t.Step > 0) {
		return ticks
	}
	start := math.Ceil(min/t.Step) * t.Step
	for v := start; v <= max; v += t.Step {
		ticks = append(ticks, plot.Tick{
			Value: v,
			Label: fmt.Sprintf(t.Format, v),
		})
	}
	return ticks
}

func newStyledPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()

	// Modify the font fields directly on existing styles
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}

// fieldGrid adapts a 2D ScalarField to plotter.GridXYZ.
type fieldGrid struct {
	rows   [][]float64
	xs, ys []float64
}

func newFieldGrid(sf *hologram.ScalarField) (*fieldGrid, error) {
	rows, err := sf.Rows()
	if err != nil {
		return nil, err
	}
	return &fieldGrid{rows: rows, xs: sf.Coordinates(0), ys: sf.Coordinates(1)}, nil
}

func (g *fieldGrid) Dims() (c, r int)   { return len(g.xs), len(g.ys) }
func (g *fieldGrid) Z(c, r int) float64 { return g.rows[r][c] }
func (g *fieldGrid) X(c int) float64    { return g.xs[c] }
func (g *fieldGrid) Y(r int) float64    { return g.ys[r] }

// makeHeatMapPlot saves a heat map of a 2D field with the foci that lie in
// the sampled plane marked by crosses.
func makeHeatMapPlot(sf *hologram.ScalarField, foci [][2]float64, title, filename string) error {
	grid, err := newFieldGrid(sf)
	if err != nil {
		return err
	}
	p := newStyledPlot(title,
		fmt.Sprintf("%v (mm)", sf.Axes[0]),
		fmt.Sprintf("%v (mm)", sf.Axes[1]))

	hm := plotter.NewHeatMap(grid, palette.Heat(64, 1))
	p.Add(hm)

	if len(foci) > 0 {
		pts := make(plotter.XYs, len(foci))
		for i, f := range foci {
			pts[i].X, pts[i].Y = f[0], f[1]
		}
		marks, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		marks.GlyphStyle.Shape = draw.CrossGlyph{}
		marks.GlyphStyle.Radius = vg.Points(5)
		marks.GlyphStyle.Color = color.RGBA{G: 200, B: 255, A: 255}
		p.Add(marks)
	}

	span := grid.xs[len(grid.xs)-1] - grid.xs[0]
	p.X.Tick.Marker = StepTicks{Step: niceStep(span / 8), Format: "%.0f"}
	p.Y.Tick.Marker = StepTicks{Step: niceStep(span / 8), Format: "%.0f"}

	return p.Save(7*vg.Inch, 6*vg.Inch, filename)
}

// makeFocalBarChart saves achieved and target amplitudes side by side for every focus.
func makeFocalBarChart(rep *hologram.FocalReport, filename string) error {
	p := newStyledPlot("Focal amplitudes", "focus", "|p| (relative units)")

	width := vg.Points(14)
	achieved, err := plotter.NewBarChart(plotter.Values(rep.Achieved), width)
	if err != nil {
		return err
	}
	achieved.Color = color.RGBA{B: 255, A: 255}
	achieved.Offset = -width / 2

	target, err := plotter.NewBarChart(plotter.Values(rep.Target), width)
	if err != nil {
		return err
	}
	target.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	target.Offset = width / 2

	p.Add(plotter.NewGrid(), achieved, target)
	p.Legend.Add("achieved", achieved)
	p.Legend.Add("target", target)
	p.Legend.Top = true

	names := make([]string, len(rep.Achieved))
	for i := range names {
		names[i] = fmt.Sprintf("F%d", i)
	}
	p.NominalX(names...)
	p.Y.Min = 0

	return p.Save(8*vg.Inch, 4*vg.Inch, filename)
}

// niceStep rounds a raw tick step to 1, 2 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if !(raw > 0) {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / mag; {
	case f < 1.5:
		return mag
	case f < 3.5:
		return 2 * mag
	case f < 7.5:
		return 5 * mag
	}
	return 10 * mag
}
