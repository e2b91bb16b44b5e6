package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Default frequency parameters for the two rotary variants.
const (
	// DefaultRotaryTheta is the base for temporal (sequence) frequencies.
	DefaultRotaryTheta = 10000.0
	// DefaultRotaryMaxFreq is the pixel frequency ceiling for spatial
	// (grid) frequencies.
	DefaultRotaryMaxFreq = 256.0
)

type rotaryKind int

const (
	rotaryTemporal rotaryKind = iota
	rotarySpatial
)

// RotaryCache holds precomputed rotary position tables (RoPE) and applies
// them to query/key tensors.
//
// Rotation formula for each dimension pair (2i, 2i+1):
//
//	out[2i]   = x[2i]*cos(angle_i) - x[2i+1]*sin(angle_i)
//	out[2i+1] = x[2i+1]*cos(angle_i) + x[2i]*sin(angle_i)
//
// Dot products of rotated queries and keys depend only on the distance
// between their positions, which is what lets attention generalize across
// absolute positions.
//
// Two variants share the cache type:
//
//   - Temporal: angle_i = pos * theta^(-2i/d) over integer positions
//     0, 1, 2, ...; tables grow through EnsureLen.
//   - Spatial axial: per-axis pixel frequencies linspace(1, maxFreq/2, d/4)
//     scaled by pi, over positions linspace(-1, 1, n) along each grid axis;
//     the row-axis pairs come first, then the column-axis pairs. Tables are
//     built per grid through EnsureGrid.
//
// When the head dimension exceeds the rotated width (2*pairs), the trailing
// remainder passes through unrotated.
//
// The cache starts empty: callers must prime it with EnsureLen or
// EnsureGrid before Rotate.
type RotaryCache[B tensor.Backend] struct {
	FreqCos *tensor.Tensor[float32, B] // [positions, pairs] cosine table
	FreqSin *tensor.Tensor[float32, B] // [positions, pairs] sine table

	HeadDim int // per-head dimension the tables rotate

	kind    rotaryKind
	pairs   int     // rotated pair count; rotated width is 2*pairs
	theta   float64 // temporal frequency base
	maxFreq float64 // spatial pixel frequency ceiling

	length       int // cached temporal positions
	gridH, gridW int // cached spatial grid
	backend      B
}

// NewTemporalRotary creates a rotary cache for integer sequence positions.
//
// A non-positive theta selects DefaultRotaryTheta.
//
// Panics if headDim is below 2 (nothing to pair).
func NewTemporalRotary[B tensor.Backend](headDim int, theta float64, backend B) *RotaryCache[B] {
	if headDim < 2 {
		panic(fmt.Sprintf("rotary: head dim must be at least 2, got %d", headDim))
	}
	if theta <= 0 {
		theta = DefaultRotaryTheta
	}

	return &RotaryCache[B]{
		HeadDim: headDim,
		kind:    rotaryTemporal,
		pairs:   headDim / 2,
		theta:   theta,
		backend: backend,
	}
}

// NewSpatialRotary creates a rotary cache for 2D grid positions.
//
// Half of the rotated pairs encode the row coordinate and half the column
// coordinate, so headDim must be at least 4. A non-positive maxFreq selects
// DefaultRotaryMaxFreq.
func NewSpatialRotary[B tensor.Backend](headDim int, maxFreq float64, backend B) *RotaryCache[B] {
	if headDim < 4 {
		panic(fmt.Sprintf("rotary: head dim must be at least 4 for axial rotation, got %d", headDim))
	}
	if maxFreq <= 0 {
		maxFreq = DefaultRotaryMaxFreq
	}

	return &RotaryCache[B]{
		HeadDim: headDim,
		kind:    rotarySpatial,
		pairs:   2 * (headDim / 4),
		maxFreq: maxFreq,
		backend: backend,
	}
}

// EnsureLen makes the temporal tables cover at least n positions.
//
// Growing rebuilds the tables; a request already covered is a no-op.
// Returns an error for non-positive n or when called on a spatial cache.
func (r *RotaryCache[B]) EnsureLen(n int) error {
	if r.kind != rotaryTemporal {
		return fmt.Errorf("rotary: EnsureLen applies to temporal caches only")
	}
	if n <= 0 {
		return fmt.Errorf("rotary: length must be positive, got %d", n)
	}
	if n <= r.length {
		return nil
	}

	angles := make([]float64, n*r.pairs)
	for i := 0; i < r.pairs; i++ {
		freq := math.Pow(r.theta, -2.0*float64(i)/float64(r.HeadDim))
		for pos := 0; pos < n; pos++ {
			angles[pos*r.pairs+i] = float64(pos) * freq
		}
	}

	if err := r.setTables(angles, n); err != nil {
		return err
	}
	r.length = n
	return nil
}

// EnsureGrid builds the spatial tables for an h x w token grid, indexed
// row-major. A different grid size invalidates and rebuilds the tables.
// Returns an error for non-positive sizes or when called on a temporal
// cache.
func (r *RotaryCache[B]) EnsureGrid(h, w int) error {
	if r.kind != rotarySpatial {
		return fmt.Errorf("rotary: EnsureGrid applies to spatial caches only")
	}
	if h <= 0 || w <= 0 {
		return fmt.Errorf("rotary: grid must be positive, got %dx%d", h, w)
	}
	if h == r.gridH && w == r.gridW {
		return nil
	}

	perAxis := r.pairs / 2
	freqs := linspace(1, r.maxFreq/2, perAxis)
	for i := range freqs {
		freqs[i] *= math.Pi
	}
	posH := linspace(-1, 1, h)
	posW := linspace(-1, 1, w)

	angles := make([]float64, h*w*r.pairs)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			base := (row*w + col) * r.pairs
			for i := 0; i < perAxis; i++ {
				angles[base+i] = posH[row] * freqs[i]
				angles[base+perAxis+i] = posW[col] * freqs[i]
			}
		}
	}

	if err := r.setTables(angles, h*w); err != nil {
		return err
	}
	r.gridH, r.gridW = h, w
	return nil
}

// Len returns the number of cached temporal positions.
func (r *RotaryCache[B]) Len() int {
	return r.length
}

// Grid returns the cached spatial grid size.
func (r *RotaryCache[B]) Grid() (h, w int) {
	return r.gridH, r.gridW
}

// Rotate applies the cached rotation to positions
// [offset, offset+positions) of a [batch, heads, positions, headDim]
// tensor.
//
// Spatial callers pass offset 0 with positions equal to the full grid.
//
// Panics if the input is not 4D, the trailing dimension does not match the
// cache, or the requested positions are outside the cached range.
func (r *RotaryCache[B]) Rotate(x *tensor.Tensor[float32, B], offset int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("rotary: input must be 4D [batch, heads, positions, headDim], got shape %v", shape))
	}
	if shape[3] != r.HeadDim {
		panic(fmt.Sprintf("rotary: expected head dim %d, got %d", r.HeadDim, shape[3]))
	}

	rows := 0
	if r.FreqCos != nil {
		rows = r.FreqCos.Shape()[0]
	}
	seq := shape[2]
	if offset < 0 || offset+seq > rows {
		panic(fmt.Sprintf("rotary: positions [%d, %d) not cached (have %d); call EnsureLen or EnsureGrid first",
			offset, offset+seq, rows))
	}

	batch, heads := shape[0], shape[1]
	xData := x.Data()
	cosData := r.FreqCos.Data()
	sinData := r.FreqSin.Data()
	outData := make([]float32, len(xData))
	rot := 2 * r.pairs

	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			for pos := 0; pos < seq; pos++ {
				baseIdx := ((b*heads+h)*seq + pos) * r.HeadDim
				tblIdx := (offset + pos) * r.pairs

				for i := 0; i < r.pairs; i++ {
					evenIdx := baseIdx + 2*i
					oddIdx := evenIdx + 1

					xEven := xData[evenIdx]
					xOdd := xData[oddIdx]
					cosVal := cosData[tblIdx+i]
					sinVal := sinData[tblIdx+i]

					outData[evenIdx] = xEven*cosVal - xOdd*sinVal
					outData[oddIdx] = xOdd*cosVal + xEven*sinVal
				}

				// Remainder beyond the rotated width passes through.
				for i := rot; i < r.HeadDim; i++ {
					outData[baseIdx+i] = xData[baseIdx+i]
				}
			}
		}
	}

	out, err := tensor.FromSlice[float32, B](outData, shape, r.backend)
	if err != nil {
		panic(fmt.Sprintf("rotary: failed to create output tensor: %v", err))
	}
	return out
}

// setTables materializes cos/sin tensors from per-position angles.
func (r *RotaryCache[B]) setTables(angles []float64, rows int) error {
	cosData := make([]float32, len(angles))
	sinData := make([]float32, len(angles))
	for i, a := range angles {
		cosData[i] = float32(math.Cos(a))
		sinData[i] = float32(math.Sin(a))
	}

	shape := tensor.Shape{rows, r.pairs}
	cosT, err := tensor.FromSlice[float32, B](cosData, shape, r.backend)
	if err != nil {
		return fmt.Errorf("rotary: cos table: %w", err)
	}
	sinT, err := tensor.FromSlice[float32, B](sinData, shape, r.backend)
	if err != nil {
		return fmt.Errorf("rotary: sin table: %w", err)
	}

	r.FreqCos = cosT
	r.FreqSin = sinT
	return nil
}

// linspace returns n evenly spaced points from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	dst := make([]float64, n)
	floats.Span(dst, lo, hi)
	return dst
}
