// Package nn implements the neural network layers the Mirage video model
// is assembled from.
//
// The building blocks:
//   - Module interface: base interface for single-input layers
//   - Parameter: named weight tensors loaded from checkpoints
//   - Linear, LayerNorm, MLP, Embedding: core layers
//   - RotaryCache: rotary position tables for attention
//   - SpatialAttention, TemporalAttention: axial attention over a
//     frame-token grid
//   - PatchEmbed / Unpatchify: pixel-space to token-space projection
//
// Layers panic on shape violations; constructors and table builders that
// can fail for reasons a caller should handle return errors.
package nn

import (
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Module is the base interface for single-input neural network layers.
//
// Layers that take side inputs (conditioning vectors, masks) define their
// own Forward signatures and only share the Parameters contract.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Linear expects [..., in_features].
	//
	// Returns the output tensor with shape determined by the module type.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all weight parameters of this module.
	//
	// This includes weights, biases, and any nested module parameters.
	// Returns an empty slice for modules without weights (e.g. activation
	// functions).
	Parameters() []*Parameter[B]
}
