package nn

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Linear applies an affine transformation: y = x @ W^T + b
//
// The weight matrix is stored as [out_features, in_features] and the
// optional bias as [out_features].
//
// Forward accepts any input of rank >= 2 whose trailing dimension equals
// in_features; leading dimensions are flattened for the matrix product and
// restored afterwards, so token grids like [batch, frames, tokens, dim]
// pass through without reshaping at the call site.
//
// Example:
//
//	linear := nn.NewLinear[B](768, 3072, backend)
//	output := linear.Forward(input) // [batch, seq, 768] -> [batch, seq, 3072]
type Linear[B tensor.Backend] struct {
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features], nil when constructed without bias
	inFeatures  int
	outFeatures int
	backend     B
}

// NewLinear creates a fully connected layer with bias.
//
// Weights use Xavier initialization, the bias starts at zero.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	l := NewLinearNoBias(inFeatures, outFeatures, backend)
	l.bias = NewParameter[B]("bias", Zeros[B](tensor.Shape{outFeatures}, backend))
	return l
}

// NewLinearNoBias creates a fully connected layer without a bias term.
//
// Attention Q/K/V projections use this form.
func NewLinearNoBias[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("Linear: feature counts must be positive, got in=%d out=%d", inFeatures, outFeatures))
	}

	weight := Xavier[B](inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, backend)

	return &Linear[B]{
		weight:      NewParameter[B]("weight", weight),
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		backend:     backend,
	}
}

// Forward computes the affine transformation.
//
// Shapes:
//   - input: [..., in_features]
//   - output: [..., out_features]
//
// Panics if the input rank is below 2 or the trailing dimension does not
// match in_features.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("Linear: input must be at least 2D, got shape %v", shape))
	}
	if shape[len(shape)-1] != l.inFeatures {
		panic(fmt.Sprintf("Linear: expected %d input features, got %d", l.inFeatures, shape[len(shape)-1]))
	}

	x := input
	if len(shape) > 2 {
		rows := shape.NumElements() / l.inFeatures
		x = input.Reshape(rows, l.inFeatures)
	}

	output := x.MatMul(l.weight.Tensor().T())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}

	if len(shape) > 2 {
		outShape := shape.Clone()
		outShape[len(outShape)-1] = l.outFeatures
		output = output.Reshape(outShape...)
	}

	return output
}

// Zero overwrites the weight (and bias, when present) with zeros.
//
// The adaptive modulation projections are zeroed after construction so a
// fresh network starts as an identity mapping.
func (l *Linear[B]) Zero() {
	data := l.weight.Tensor().Data()
	for i := range data {
		data[i] = 0
	}
	if l.bias != nil {
		data = l.bias.Tensor().Data()
		for i := range data {
			data[i] = 0
		}
	}
}

// Parameters returns the weight and, when present, the bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias == nil {
		return []*Parameter[B]{l.weight}
	}
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter, or nil for a bias-free layer.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the input feature count.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the output feature count.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
