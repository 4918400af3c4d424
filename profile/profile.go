// Package profile extracts field profiles along straight lines across a sampled
// hologram plane, measures the focal spots found on them, and renders profile
// plots and line overlays for display images.
package profile

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/bob-anderson-ok/holofocus/hologram"
	"gonum.org/v1/plot"
	_ "gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// HalfPower is the pressure level, relative to a peak, at which the power has
// dropped by half (-3 dB).
const HalfPower = math.Sqrt2 / 2

// Plane describes the pixel grid of a 2D sampled field. Pixel (0, 0) sits at
// (OriginX, OriginY) in mm; x runs along the first free axis and y along the second.
type Plane struct {
	OriginX, OriginY float64
	Resolution       float64 // mm per pixel
	Cols, Rows       int
}

// PlaneOf returns the pixel grid of a two-dimensional field.
func PlaneOf(sf *hologram.ScalarField) (Plane, error) {
	if sf.Dims() != 2 {
		return Plane{}, fmt.Errorf("profile: need a 2D field, have %d dimensions", sf.Dims())
	}
	origin := [3]float64{sf.Origin.X, sf.Origin.Y, sf.Origin.Z}
	return Plane{
		OriginX:    origin[sf.Axes[0]],
		OriginY:    origin[sf.Axes[1]],
		Resolution: sf.Resolution,
		Cols:       sf.Counts[0],
		Rows:       sf.Counts[1],
	}, nil
}

// ToPixel converts plane coordinates in mm to fractional pixel coordinates.
func (pl Plane) ToPixel(u, v float64) (x, y float64) {
	return (u - pl.OriginX) / pl.Resolution, (v - pl.OriginY) / pl.Resolution
}

// Sample is a point along a profile line.
type Sample struct {
	X        float64 // X coordinate in pixels
	Y        float64 // Y coordinate in pixels
	Distance float64 // Distance from the line start in mm
}

// Point is a single value of an extracted profile.
type Point struct {
	Distance float64 // Distance from the line start in mm
	Value    float64
}

// Line is a straight cut across a Plane.
type Line struct {
	Plane Plane

	// Clipped endpoints in fractional pixel coordinates
	StartX, StartY float64
	EndX, EndY     float64

	Samples []Sample
}

// ErrNoIntersection is returned when a line does not cross the sampled plane.
var ErrNoIntersection = errors.New("line does not cross the sampled plane")

// NewLine returns the part of the segment from (u0, v0) to (u1, v1), in mm,
// that lies inside the plane, sampled once per pixel.
func NewLine(pl Plane, u0, v0, u1, v1 float64) (*Line, error) {
	if pl.Cols < 2 || pl.Rows < 2 || !(pl.Resolution > 0) {
		return nil, fmt.Errorf("profile: degenerate plane %+v", pl)
	}
	x0, y0 := pl.ToPixel(u0, v0)
	x1, y1 := pl.ToPixel(u1, v1)
	t0, t1, ok := clipSegment(x0, y0, x1, y1, float64(pl.Cols-1), float64(pl.Rows-1))
	if !ok {
		return nil, ErrNoIntersection
	}
	dx, dy := x1-x0, y1-y0
	l := &Line{
		Plane:  pl,
		StartX: x0 + t0*dx, StartY: y0 + t0*dy,
		EndX: x0 + t1*dx, EndY: y0 + t1*dy,
	}
	l.ComputeSamplePoints()
	return l, nil
}

// clipSegment clips the segment to [0, w]×[0, h] and returns the parameter
// range that remains (Liang–Barsky).
func clipSegment(x0, y0, x1, y1, w, h float64) (t0, t1 float64, ok bool) {
	t0, t1 = 0, 1
	dx, dy := x1-x0, y1-y0
	edges := [4][2]float64{
		{-dx, x0},
		{dx, w - x0},
		{-dy, y0},
		{dy, h - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			t0 = math.Max(t0, r)
		} else {
			t1 = math.Min(t1, r)
		}
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}

// ComputeSamplePoints samples the line at 1-pixel intervals from its start.
func (l *Line) ComputeSamplePoints() {
	xLength := l.EndX - l.StartX
	yLength := l.EndY - l.StartY
	length := math.Hypot(xLength, yLength)

	l.Samples = l.Samples[:0]
	n := int(math.Floor(length)) + 1
	for i := 0; i < n; i++ {
		k := float64(i)
		if length > 0 {
			k /= length
		}
		l.Samples = append(l.Samples, Sample{
			X:        l.StartX + k*xLength,
			Y:        l.StartY + k*yLength,
			Distance: float64(i) * l.Plane.Resolution,
		})
	}
}

// interpolate performs bilinear interpolation on a rectangular matrix at
// fractional (x, y) = (column, row).
func interpolate(matrix [][]float64, x, y float64) float64 {
	rows := len(matrix)
	if rows == 0 || len(matrix[0]) == 0 {
		return 0
	}
	cols := len(matrix[0])
	if rows == 1 || cols == 1 {
		return matrix[min(max(int(math.Round(y)), 0), rows-1)][min(max(int(math.Round(x)), 0), cols-1)]
	}

	x = math.Max(0, math.Min(x, float64(cols-1)-1e-9))
	y = math.Max(0, math.Min(y, float64(rows-1)-1e-9))

	x0, y0 := int(x), int(y)
	xFrac, yFrac := x-float64(x0), y-float64(y0)

	v0 := matrix[y0][x0]*(1-xFrac) + matrix[y0][x0+1]*xFrac
	v1 := matrix[y0+1][x0]*(1-xFrac) + matrix[y0+1][x0+1]*xFrac
	return v0*(1-yFrac) + v1*yFrac
}

// Extract samples rows (as returned by ScalarField.Rows) along the line.
func Extract(rows [][]float64, l *Line) []Point {
	if len(l.Samples) == 0 {
		l.ComputeSamplePoints()
	}
	curve := make([]Point, len(l.Samples))
	for i, s := range l.Samples {
		curve[i] = Point{Distance: s.Distance, Value: interpolate(rows, s.X, s.Y)}
	}
	return curve
}

// Spot is a local maximum of a profile.
type Spot struct {
	Distance float64 // Position of the peak along the line, mm
	Peak     float64
	// Width is the full width of the spot at level·Peak in mm, with the
	// crossings linearly interpolated. It is NaN when the profile ends
	// before the value falls to that level on either side.
	Width float64
}

// FindSpots returns the local maxima of curve that reach at least
// threshold·max(curve), in order along the line, each with its full width at
// level·Peak.
func FindSpots(curve []Point, threshold, level float64) []Spot {
	top := math.Inf(-1)
	for _, p := range curve {
		top = math.Max(top, p.Value)
	}
	var spots []Spot
	for i, p := range curve {
		if p.Value < threshold*top {
			continue
		}
		if i > 0 && curve[i-1].Value >= p.Value {
			continue
		}
		if i+1 < len(curve) && curve[i+1].Value > p.Value {
			continue
		}
		cut := level * p.Value
		left, okL := crossing(curve, i, -1, cut)
		right, okR := crossing(curve, i, 1, cut)
		width := math.NaN()
		if okL && okR {
			width = right - left
		}
		spots = append(spots, Spot{Distance: p.Distance, Peak: p.Value, Width: width})
	}
	return spots
}

// crossing walks from curve[i] in direction step until the value drops below
// cut and returns the interpolated distance of the crossing.
func crossing(curve []Point, i, step int, cut float64) (float64, bool) {
	for j := i + step; j >= 0 && j < len(curve); j += step {
		if curve[j].Value < cut {
			a, b := curve[j-step], curve[j]
			f := (a.Value - cut) / (a.Value - b.Value)
			return a.Distance + f*(b.Distance-a.Distance), true
		}
	}
	return 0, false
}

// StepTicks is a tick marker with fixed step intervals.
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

// PlotProfile plots a profile with its spots marked by dashed red lines and
// returns the rendered image.
func PlotProfile(curve []Point, spots []Spot, title string, wPx, hPx float64) (image.Image, error) {
	if len(curve) == 0 {
		return nil, errors.New("profile: empty curve")
	}
	p := plot.New()

	// Font settings
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

	span := curve[len(curve)-1].Distance
	top := 0.0
	for _, pt := range curve {
		top = math.Max(top, pt.Value)
	}
	if top == 0 {
		top = 1
	}

	p.Title.Text = title
	p.X.Label.Text = "mm along the profile line"
	p.Y.Label.Text = "value"
	p.Y.Min = 0
	p.Y.Max = 1.1 * top
	if span > 0 {
		p.X.Tick.Marker = StepTicks{Step: span / 10, Format: "%.1f"}
	}
	p.Y.Tick.Marker = StepTicks{Step: top / 5, Format: "%.3g"}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(curve))
	for i, pt := range curve {
		pts[i].X = pt.Distance
		pts[i].Y = pt.Value
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{B: 255, A: 255}
	p.Add(line)

	for _, s := range spots {
		vline, err := plotter.NewLine(plotter.XYs{
			{X: s.Distance, Y: 0},
			{X: s.Distance, Y: s.Peak},
		})
		if err != nil {
			return nil, err
		}
		vline.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		vline.Color = color.RGBA{R: 255, A: 255}
		p.Add(vline)
	}

	const dpi = 96
	width := vg.Length(wPx) * vg.Inch / dpi
	height := vg.Length(hPx) * vg.Inch / dpi

	c := vgimg.New(width, height)
	p.Draw(vgdraw.New(c))
	return c.Image(), nil
}

// SaveProfilePlot renders a profile plot into a PNG file.
func SaveProfilePlot(filename string, curve []Point, spots []Spot, title string, wPx, hPx float64) error {
	img, err := PlotProfile(curve, spots, title, wPx, hPx)
	if err != nil {
		return err
	}
	return SaveImageToFile(filename, img)
}

// DrawLineOnImage draws the line on a copy of a display image of the plane:
// red from a red start dot to a green end dot.
func DrawLineOnImage(sourceImage image.Image, l *Line) *image.RGBA {
	bounds := sourceImage.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, sourceImage, bounds.Min, draw.Src)

	drawLine(result, l.StartX, l.StartY, l.EndX, l.EndY, color.RGBA{R: 255, A: 255})
	drawDot(result, l.StartX, l.StartY, 3, color.RGBA{R: 255, A: 255})
	drawDot(result, l.EndX, l.EndY, 3, color.RGBA{G: 255, A: 255})
	return result
}

// drawLine draws a 3-pixel wide line with Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 float64, col color.Color) {
	cx, cy := int(math.Round(x1)), int(math.Round(y1))
	ex, ey := int(math.Round(x2)), int(math.Round(y2))
	dx, dy := abs(ex-cx), abs(ey-cy)
	sx, sy := 1, 1
	if cx > ex {
		sx = -1
	}
	if cy > ey {
		sy = -1
	}
	err := dx - dy
	b := img.Bounds()
	for {
		for oy := -1; oy <= 1; oy++ {
			for ox := -1; ox <= 1; ox++ {
				if p := (image.Point{X: cx + ox, Y: cy + oy}); p.In(b) {
					img.Set(p.X, p.Y, col)
				}
			}
		}
		if cx == ex && cy == ey {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			cx += sx
		}
		if e2 < dx {
			err += dx
			cy += sy
		}
	}
}

// drawDot draws a filled circle.
func drawDot(img *image.RGBA, cx, cy float64, radius int, col color.Color) {
	b := img.Bounds()
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > radius*radius {
				continue
			}
			if p := (image.Point{X: int(cx) + x, Y: int(cy) + y}); p.In(b) {
				img.Set(p.X, p.Y, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// LoadGray16PNG loads a 16-bit grayscale PNG into a matrix, converting pixel
// values back with value = pixel / scale.
func LoadGray16PNG(filename string, scale float64) (matrix [][]float64, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	bounds := img.Bounds()
	matrix = make([][]float64, bounds.Dy())
	for y := range matrix {
		matrix[y] = make([]float64, bounds.Dx())
		for x := range matrix[y] {
			g := color.Gray16Model.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray16)
			matrix[y][x] = float64(g.Y) / scale
		}
	}
	return matrix, nil
}

// SaveImageToFile saves an image to a PNG file.
func SaveImageToFile(filename string, img image.Image) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return png.Encode(f, img)
}
