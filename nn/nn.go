// Copyright 2025 Mirage ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/mirage-ml/mirage/internal/nn"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Module is the base interface for single-input neural network layers.
//
// Layers that take side inputs (conditioning vectors, masks) define their
// own Forward signatures and only share the Parameters contract.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named weight tensor owned by a layer.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(1024, 4096, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewLinearNoBias creates a linear layer without a bias term, as used for
// the attention projections.
//
// Example:
//
//	backend := cpu.New()
//	proj := nn.NewLinearNoBias(1024, 1024, backend)
func NewLinearNoBias[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinearNoBias(inFeatures, outFeatures, backend)
}

// LayerNorm represents Layer Normalization.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a new LayerNorm layer.
//
// Example:
//
//	backend := cpu.New()
//	norm := nn.NewLayerNorm[B](1024, 1e-5, backend)
//	output := norm.Forward(input)  // [..., 1024] -> [..., 1024]
func NewLayerNorm[B tensor.Backend](dim int, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(dim, epsilon, backend)
}

// NewLayerNormNoAffine creates a LayerNorm without the learned scale and
// shift, for blocks whose modulation supplies both externally.
//
// Example:
//
//	backend := cpu.New()
//	norm := nn.NewLayerNormNoAffine[B](1024, 1e-6, backend)
func NewLayerNormNoAffine[B tensor.Backend](dim int, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNormNoAffine(dim, epsilon, backend)
}

// MLP represents the transformer feed-forward block: two linear layers
// around a GELU activation.
type MLP[B tensor.Backend] = nn.MLP[B]

// NewMLP creates a new feed-forward block.
//
// Example:
//
//	backend := cpu.New()
//	ffn := nn.NewMLP[B](1024, 4096, backend)
//	output := ffn.Forward(input)
func NewMLP[B tensor.Backend](dim, hidden int, backend B) *MLP[B] {
	return nn.NewMLP(dim, hidden, backend)
}

// Activations

// Sigmoid represents the Sigmoid activation function.
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// NewSigmoid creates a new Sigmoid activation layer.
//
// Example:
//
//	sigmoid := nn.NewSigmoid[B]()
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return nn.NewSigmoid[B]()
}

// SiLU represents the Sigmoid Linear Unit (SiLU/Swish) activation function.
// SiLU(x) = x * sigmoid(x).
type SiLU[B tensor.Backend] = nn.SiLU[B]

// NewSiLU creates a new SiLU activation layer.
//
// Example:
//
//	silu := nn.NewSiLU[B]()
//	output := silu.Forward(input)
func NewSiLU[B tensor.Backend]() *SiLU[B] {
	return nn.NewSiLU[B]()
}

// GELUTanh represents the tanh approximation of the Gaussian Error Linear
// Unit, the activation inside the transformer MLP blocks.
type GELUTanh[B tensor.Backend] = nn.GELUTanh[B]

// NewGELUTanh creates a new GELUTanh activation layer.
//
// Example:
//
//	gelu := nn.NewGELUTanh[B]()
//	output := gelu.Forward(input)
func NewGELUTanh[B tensor.Backend]() *GELUTanh[B] {
	return nn.NewGELUTanh[B]()
}

// Embedding Layers

// Embedding represents a lookup table for embeddings.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates a new embedding layer.
//
// Example:
//
//	backend := cpu.New()
//	embed := nn.NewEmbedding[B](25, 1024, backend)  // actions=25, dim=1024
//	actionIds := tensor.FromSlice([]int32{1, 5, 10}, tensor.Shape{1, 3}, backend)
//	embeddings := embed.Forward(actionIds)  // [1, 3, 1024]
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, backend)
}

// NewEmbeddingWithWeight creates an embedding layer from an existing weight
// tensor.
//
// This is useful when loading pre-trained embeddings.
//
// Example:
//
//	weights := tensor.Randn[float32](tensor.Shape{25, 1024}, backend)
//	embed := nn.NewEmbeddingWithWeight(weights)
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	return nn.NewEmbeddingWithWeight(weight)
}

// Initialization functions

// Xavier initializes a tensor using Xavier/Glorot initialization.
//
// Example:
//
//	backend := cpu.New()
//	weights := nn.Xavier(1024, 4096, tensor.Shape{4096, 1024}, backend)
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, backend)
}

// Zeros initializes a tensor with zeros (for biases).
//
// Example:
//
//	backend := cpu.New()
//	bias := nn.Zeros(tensor.Shape{1024}, backend)
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Zeros(shape, backend)
}

// Ones initializes a tensor with ones.
//
// Example:
//
//	backend := cpu.New()
//	scale := nn.Ones(tensor.Shape{1024}, backend)
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Ones(shape, backend)
}

// Randn initializes a tensor with random values from N(0, 1).
//
// Example:
//
//	backend := cpu.New()
//	weights := nn.Randn(tensor.Shape{4096, 1024}, backend)
func Randn[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Randn(shape, backend)
}

// Attention Functions

// ScaledDotProductAttention computes attention scores using the scaled
// dot-product mechanism.
//
// This is the core attention mechanism used in transformers.
//
// Parameters:
//   - query: Query tensor [batch, heads, seq_q, head_dim]
//   - key: Key tensor [batch, heads, seq_k, head_dim]
//   - value: Value tensor [batch, heads, seq_k, head_dim]
//   - mask: Optional attention mask [batch, 1, seq_q, seq_k] or nil (additive mask, -inf for masked)
//   - scale: Scaling factor (0 for auto-compute as 1/sqrt(head_dim))
//
// Returns:
//   - output: Attended values [batch, heads, seq_q, head_dim]
//   - weights: Attention weights [batch, heads, seq_q, seq_k]
//
// Example:
//
//	Q := tensor.Randn[float32](tensor.Shape{2, 8, 10, 64}, backend)
//	K := tensor.Randn[float32](tensor.Shape{2, 8, 10, 64}, backend)
//	V := tensor.Randn[float32](tensor.Shape{2, 8, 10, 64}, backend)
//	output, weights := nn.ScaledDotProductAttention(Q, K, V, nil, 0)
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	return nn.ScaledDotProductAttention(query, key, value, mask, scale)
}

// CausalMask creates a causal (autoregressive) attention mask.
//
// In causal attention, each position can only attend to earlier positions.
// The temporal attention path uses this so a frame's denoising never reads
// later frames.
//
// Returns a mask tensor where future positions are masked with -inf.
// Shape: [1, 1, seq_len, seq_len] (broadcastable to [batch, heads, seq, seq])
//
// Example:
//
//	mask := nn.CausalMask(10, backend)  // [1, 1, 10, 10]
//	output, weights := nn.ScaledDotProductAttention(Q, K, V, mask, 0)
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[float32, B] {
	return nn.CausalMask(seqLen, backend)
}
