package nn

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// LayerNorm normalizes the trailing dimension to zero mean and unit
// variance:
//
//	y = (x - mean(x)) / sqrt(var(x) + epsilon) * gamma + beta
//
// The affine pair (gamma, beta) is optional. Blocks that modulate the
// normalized activations with externally produced shift/scale vectors use
// the affine-free variant so the modulation is the only learned scaling.
type LayerNorm[B tensor.Backend] struct {
	Gamma *Parameter[B] // [dim] scale, nil when affine is disabled
	Beta  *Parameter[B] // [dim] shift, nil when affine is disabled

	Epsilon float32
	dim     int
	backend B
}

// NewLayerNorm creates a LayerNorm with learnable scale and shift.
//
// Gamma initializes to ones, beta to zeros.
func NewLayerNorm[B tensor.Backend](dim int, epsilon float32, backend B) *LayerNorm[B] {
	ln := NewLayerNormNoAffine(dim, epsilon, backend)
	ln.Gamma = NewParameter[B]("gamma", Ones[B](tensor.Shape{dim}, backend))
	ln.Beta = NewParameter[B]("beta", Zeros[B](tensor.Shape{dim}, backend))
	return ln
}

// NewLayerNormNoAffine creates a LayerNorm without learnable parameters.
func NewLayerNormNoAffine[B tensor.Backend](dim int, epsilon float32, backend B) *LayerNorm[B] {
	if dim <= 0 {
		panic(fmt.Sprintf("LayerNorm: dim must be positive, got %d", dim))
	}
	if epsilon <= 0 {
		panic(fmt.Sprintf("LayerNorm: epsilon must be positive, got %g", epsilon))
	}

	return &LayerNorm[B]{
		Epsilon: epsilon,
		dim:     dim,
		backend: backend,
	}
}

// Forward normalizes the trailing dimension.
//
// Shapes:
//   - input: [..., dim]
//   - output: same as input
//
// Panics if the trailing dimension does not match the configured dim.
func (ln *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) < 1 || shape[len(shape)-1] != ln.dim {
		panic(fmt.Sprintf("LayerNorm: expected trailing dimension %d, got shape %v", ln.dim, shape))
	}

	mean := x.MeanDim(-1, true)
	centered := x.Sub(mean)
	variance := centered.Mul(centered).MeanDim(-1, true)
	rstd := variance.AddScalar(ln.Epsilon).Rsqrt()
	normalized := centered.Mul(rstd)

	if ln.Gamma == nil {
		return normalized
	}
	return normalized.Mul(ln.Gamma.Tensor()).Add(ln.Beta.Tensor())
}

// Parameters returns gamma and beta, or an empty list for the affine-free
// variant.
func (ln *LayerNorm[B]) Parameters() []*Parameter[B] {
	if ln.Gamma == nil {
		return nil
	}
	return []*Parameter[B]{ln.Gamma, ln.Beta}
}

// Dim returns the normalized trailing dimension size.
func (ln *LayerNorm[B]) Dim() int {
	return ln.dim
}
