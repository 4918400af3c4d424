package hologram

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis names a Cartesian axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

func (a Axis) valid() bool { return a >= AxisX && a <= AxisZ }

// countEps absorbs rounding in (max-min)/resolution so that, for example,
// a 0.3 mm span sampled every 0.1 mm yields 4 points rather than 3.
const countEps = 1e-9

type axisSpec struct {
	set      bool
	min, max float64
}

// GridBuilder accumulates the axis specifications of a sampling grid.
//
// A builder is consumed by every call: configuration methods return a new
// builder and leave the receiver unusable, and Generate consumes the builder
// it is called on. Reusing a consumed builder makes Generate fail with
// ErrBuilderConsumed. Configuration errors are carried along the chain and
// reported by Generate.
//
//	sf, err := hologram.NewGridBuilder().
//		Range(hologram.AxisX, -50, 50).
//		Range(hologram.AxisY, -50, 50).
//		At(hologram.AxisZ, 150).
//		Resolution(1).
//		Generate(arr, hologram.Pressure)
type GridBuilder struct {
	specs      [3]axisSpec
	order      []Axis
	resolution float64
	err        error
	consumed   bool
}

// NewGridBuilder returns an empty builder with a resolution of 1 mm.
func NewGridBuilder() *GridBuilder {
	return &GridBuilder{resolution: 1}
}

// advance consumes b and returns its successor.
func (b *GridBuilder) advance() *GridBuilder {
	if b == nil {
		return &GridBuilder{err: fmt.Errorf("%w: nil grid builder", ErrConfiguration)}
	}
	if b.consumed {
		return &GridBuilder{err: ErrBuilderConsumed}
	}
	b.consumed = true
	next := *b
	next.consumed = false
	next.order = append([]Axis(nil), b.order...)
	return &next
}

func (b *GridBuilder) fail(err error) *GridBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *GridBuilder) setAxis(axis Axis, min, max float64) *GridBuilder {
	switch {
	case !axis.valid():
		return b.fail(fmt.Errorf("%w: unknown axis %d", ErrConfiguration, int(axis)))
	case b.specs[axis].set:
		return b.fail(fmt.Errorf("%w: the %v axis has already been specified", ErrConfiguration, axis))
	case !isFinite(min) || !isFinite(max):
		return b.fail(fmt.Errorf("%w: %v axis bounds must be finite", ErrConfiguration, axis))
	case min > max:
		return b.fail(fmt.Errorf("%w: %v axis minimum %v exceeds maximum %v", ErrConfiguration, axis, min, max))
	}
	b.specs[axis] = axisSpec{set: true, min: min, max: max}
	b.order = append(b.order, axis)
	return b
}

// Range samples axis from min to max (inclusive) at the grid resolution.
func (b *GridBuilder) Range(axis Axis, min, max float64) *GridBuilder {
	return b.advance().setAxis(axis, min, max)
}

// At fixes axis at v; it contributes no dimension to the grid.
func (b *GridBuilder) At(axis Axis, v float64) *GridBuilder {
	return b.advance().setAxis(axis, v, v)
}

// Resolution sets the sampling step shared by every ranged axis.
func (b *GridBuilder) Resolution(r float64) *GridBuilder {
	next := b.advance()
	next.resolution = r
	return next
}

// Generate consumes the builder and samples the field of arr over the grid.
func (b *GridBuilder) Generate(arr *Array, t FieldType) (*ScalarField, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil grid builder", ErrConfiguration)
	}
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	sf, err := b.layout()
	if err != nil {
		return nil, err
	}
	switch {
	case arr == nil:
		return nil, fmt.Errorf("%w: nil array", ErrConfiguration)
	case !t.valid():
		return nil, fmt.Errorf("%w: unknown field type %d", ErrConfiguration, int(t))
	case arr.InUse():
		return nil, ErrExclusiveAccess
	}
	sf.Type = t
	sf.Values = make([]float64, sf.Len())
	sf.fill(arr)
	return sf, nil
}

// layout validates the configuration and returns an empty field with its shape.
func (b *GridBuilder) layout() (*ScalarField, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.order) == 0 {
		return nil, fmt.Errorf("%w: no axis specified", ErrConfiguration)
	}
	if !(b.resolution > 0) || math.IsInf(b.resolution, 0) {
		return nil, fmt.Errorf("%w: resolution %v must be positive", ErrConfiguration, b.resolution)
	}
	sf := &ScalarField{Resolution: b.resolution}
	origin := [3]float64{}
	for _, axis := range b.order {
		spec := b.specs[axis]
		origin[axis] = spec.min
		n := int(math.Floor((spec.max-spec.min)/b.resolution+countEps)) + 1
		if n > 1 {
			sf.Axes = append(sf.Axes, axis)
			sf.Counts = append(sf.Counts, n)
		}
	}
	sf.Origin = r3.Vec{X: origin[0], Y: origin[1], Z: origin[2]}
	return sf, nil
}

// fill evaluates every grid point. Workers own disjoint index ranges and only
// read the array.
func (sf *ScalarField) fill(arr *Array) {
	g := arr.propagator(arr.waveNumber)
	n := len(sf.Values)
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				sf.Values[i] = sf.Type.Scalar(arr.field(g, sf.Point(i)))
			}
		}(lo, hi)
	}
	wg.Wait()
}

// ScalarField holds field values sampled on a regular grid.
//
// Values is flat with the first entry of Axes varying fastest:
// index = i0 + Counts[0]*(i1 + Counts[1]*i2).
type ScalarField struct {
	Type       FieldType
	Values     []float64
	Axes       []Axis // Free axes in the order they were configured
	Counts     []int  // Number of points along each entry of Axes
	Origin     r3.Vec // Position of index 0
	Resolution float64
}

// Dims returns the number of free axes (0 to 3).
func (sf *ScalarField) Dims() int { return len(sf.Axes) }

// Len returns the number of grid points.
func (sf *ScalarField) Len() int {
	n := 1
	for _, c := range sf.Counts {
		n *= c
	}
	return n
}

// Shape returns a copy of the per-axis point counts.
func (sf *ScalarField) Shape() []int {
	return append([]int(nil), sf.Counts...)
}

// Index returns the flat index of the grid point with the given per-axis
// indices. It panics if the number of indices or any index is out of range.
func (sf *ScalarField) Index(idx ...int) int {
	if len(idx) != len(sf.Counts) {
		panic(fmt.Sprintf("hologram: %d indices for a %d-dimensional field", len(idx), len(sf.Counts)))
	}
	flat, stride := 0, 1
	for d, i := range idx {
		if i < 0 || i >= sf.Counts[d] {
			panic(fmt.Sprintf("hologram: index %d out of range along %v", i, sf.Axes[d]))
		}
		flat += i * stride
		stride *= sf.Counts[d]
	}
	return flat
}

// At returns the value at the given per-axis indices.
func (sf *ScalarField) At(idx ...int) float64 { return sf.Values[sf.Index(idx...)] }

// Point returns the position of the grid point with flat index i.
func (sf *ScalarField) Point(i int) r3.Vec {
	p := [3]float64{sf.Origin.X, sf.Origin.Y, sf.Origin.Z}
	for d, axis := range sf.Axes {
		p[axis] += float64(i%sf.Counts[d]) * sf.Resolution
		i /= sf.Counts[d]
	}
	return r3.Vec{X: p[0], Y: p[1], Z: p[2]}
}

// Coordinates returns the sample positions along free axis d.
func (sf *ScalarField) Coordinates(d int) []float64 {
	start := [3]float64{sf.Origin.X, sf.Origin.Y, sf.Origin.Z}[sf.Axes[d]]
	out := make([]float64, sf.Counts[d])
	for i := range out {
		out[i] = start + float64(i)*sf.Resolution
	}
	return out
}

// Rows reshapes a 2D field into rows along its second axis, each row running
// along the first axis.
func (sf *ScalarField) Rows() ([][]float64, error) {
	if sf.Dims() != 2 {
		return nil, fmt.Errorf("%w: cannot reshape a %d-dimensional field into rows", ErrConfiguration, sf.Dims())
	}
	cols, rows := sf.Counts[0], sf.Counts[1]
	m := make([][]float64, rows)
	for r := range m {
		m[r] = sf.Values[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return m, nil
}

// Max returns the largest value and its flat index. NaN values are skipped.
func (sf *ScalarField) Max() (float64, int) {
	best, at := math.Inf(-1), -1
	for i, v := range sf.Values {
		if v > best {
			best, at = v, i
		}
	}
	return best, at
}
