package nn

import (
	"fmt"
	"math"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// SinusoidalPositionalEncoding implements fixed sinusoidal positional
// encodings (Vaswani et al., 2017):
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/d))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/d))
//
// The encodings are fixed, not learned. Attention layers configured without
// rotary tables add them to the input before the Q/K/V projections; the
// temporal axis uses this 1D form.
type SinusoidalPositionalEncoding[B tensor.Backend] struct {
	Encoding *tensor.Tensor[float32, B] // [max_len, dim] - pre-computed encodings
	MaxLen   int                        // Maximum sequence length
	Dim      int                        // Embedding dimension
	backend  B
}

// NewSinusoidalPositionalEncoding pre-computes encodings for positions
// [0, maxLen).
func NewSinusoidalPositionalEncoding[B tensor.Backend](maxLen, dim int, backend B) *SinusoidalPositionalEncoding[B] {
	if maxLen <= 0 {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding: maxLen must be positive, got %d", maxLen))
	}
	if dim <= 0 {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding: dim must be positive, got %d", dim))
	}

	encodings := make([]float32, maxLen*dim)
	fillSinusoidal(encodings, maxLen, dim)

	encoding, err := tensor.FromSlice[float32, B](encodings, tensor.Shape{maxLen, dim}, backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create encoding tensor: %v", err))
	}

	return &SinusoidalPositionalEncoding[B]{
		Encoding: encoding,
		MaxLen:   maxLen,
		Dim:      dim,
		backend:  backend,
	}
}

// Forward returns positional encodings for the first seqLen positions.
//
// The result has shape [1, seqLen, dim] so it broadcasts over any batch
// size when added to activations.
//
// Panics if seqLen exceeds MaxLen.
func (pe *SinusoidalPositionalEncoding[B]) Forward(seqLen int) *tensor.Tensor[float32, B] {
	if seqLen <= 0 || seqLen > pe.MaxLen {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding: seqLen %d out of range (1..%d)", seqLen, pe.MaxLen))
	}

	data := make([]float32, seqLen*pe.Dim)
	copy(data, pe.Encoding.Data()[:seqLen*pe.Dim])

	out, err := tensor.FromSlice[float32, B](data, tensor.Shape{1, seqLen, pe.Dim}, pe.backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create position slice: %v", err))
	}
	return out
}

// Parameters returns an empty list (fixed encodings).
func (pe *SinusoidalPositionalEncoding[B]) Parameters() []*Parameter[B] {
	return nil
}

// SinusoidalPositionalEncoding2D encodes a fixed (rows, cols) grid: the
// first half of the vector carries the row position, the second half the
// column position, each with the 1D sinusoidal formula.
//
// The spatial attention path uses this when rotary tables are disabled.
type SinusoidalPositionalEncoding2D[B tensor.Backend] struct {
	Encoding *tensor.Tensor[float32, B] // [rows*cols, dim], row-major over the grid
	Rows     int
	Cols     int
	Dim      int
	backend  B
}

// NewSinusoidalPositionalEncoding2D pre-computes encodings for every cell
// of a rows x cols grid. The dimension must be even so it can split across
// the two axes.
func NewSinusoidalPositionalEncoding2D[B tensor.Backend](rows, cols, dim int, backend B) *SinusoidalPositionalEncoding2D[B] {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding2D: grid must be positive, got %dx%d", rows, cols))
	}
	if dim <= 0 || dim%2 != 0 {
		panic(fmt.Sprintf("SinusoidalPositionalEncoding2D: dim must be positive and even, got %d", dim))
	}

	half := dim / 2
	rowEnc := make([]float32, rows*half)
	colEnc := make([]float32, cols*half)
	fillSinusoidal(rowEnc, rows, half)
	fillSinusoidal(colEnc, cols, half)

	encodings := make([]float32, rows*cols*dim)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			base := (r*cols + c) * dim
			copy(encodings[base:base+half], rowEnc[r*half:(r+1)*half])
			copy(encodings[base+half:base+dim], colEnc[c*half:(c+1)*half])
		}
	}

	encoding, err := tensor.FromSlice[float32, B](encodings, tensor.Shape{rows * cols, dim}, backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create encoding tensor: %v", err))
	}

	return &SinusoidalPositionalEncoding2D[B]{
		Encoding: encoding,
		Rows:     rows,
		Cols:     cols,
		Dim:      dim,
		backend:  backend,
	}
}

// Forward returns the grid encodings with shape [1, rows*cols, dim] for
// broadcast addition over a batch of token sequences.
func (pe *SinusoidalPositionalEncoding2D[B]) Forward() *tensor.Tensor[float32, B] {
	data := make([]float32, pe.Rows*pe.Cols*pe.Dim)
	copy(data, pe.Encoding.Data())

	out, err := tensor.FromSlice[float32, B](data, tensor.Shape{1, pe.Rows * pe.Cols, pe.Dim}, pe.backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create position slice: %v", err))
	}
	return out
}

// Parameters returns an empty list (fixed encodings).
func (pe *SinusoidalPositionalEncoding2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// fillSinusoidal writes the classic interleaved sin/cos table for positions
// [0, n) at the given width into dst (length n*dim).
func fillSinusoidal(dst []float32, n, dim int) {
	for pos := 0; pos < n; pos++ {
		for i := 0; i < dim; i++ {
			angle := float64(pos) / math.Pow(10000.0, float64(2*(i/2))/float64(dim))

			idx := pos*dim + i
			if i%2 == 0 {
				dst[idx] = float32(math.Sin(angle))
			} else {
				dst[idx] = float32(math.Cos(angle))
			}
		}
	}
}
