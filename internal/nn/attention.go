package nn

import (
	"math"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// ScaledDotProductAttention computes attention scores using the scaled
// dot-product mechanism:
//
//	Attention(Q, K, V) = softmax(QK^T / sqrt(d_k) + mask) * V
//
// Where:
//   - Q (query): what information we're looking for [batch, heads, seq_q, head_dim]
//   - K (key): what information is available [batch, heads, seq_k, head_dim]
//   - V (value): the actual information to retrieve [batch, heads, seq_k, head_dim]
//   - mask: optional additive attention bias (-inf disallows a position)
//   - scale: scaling factor (0 for auto-compute as 1/sqrt(head_dim))
//
// Masking happens before the softmax; masked entries contribute exactly
// zero weight.
//
// Returns:
//   - output: Attended values [batch, heads, seq_q, head_dim]
//   - weights: Attention weights [batch, heads, seq_q, seq_k]
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	validateAttentionInputs(query, key, value)

	qHeadDim := query.Shape()[3]
	if scale == 0 {
		scale = float32(1.0 / math.Sqrt(float64(qHeadDim)))
	}

	// Attention scores: Q @ K^T
	kT := key.Transpose(0, 1, 3, 2)
	scores := query.BatchMatMul(kT)

	scores = scores.MulScalar(scale)

	if mask != nil {
		scores = scores.Add(mask)
	}

	// Softmax over keys
	weights := scores.Softmax(-1)

	output := weights.BatchMatMul(value)

	return output, weights
}

// validateAttentionInputs validates the input tensors for attention.
func validateAttentionInputs[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
) {
	if len(query.Shape()) != 4 {
		panic("ScaledDotProductAttention: query must be 4D [batch, heads, seq_q, head_dim]")
	}
	if len(key.Shape()) != 4 {
		panic("ScaledDotProductAttention: key must be 4D [batch, heads, seq_k, head_dim]")
	}
	if len(value.Shape()) != 4 {
		panic("ScaledDotProductAttention: value must be 4D [batch, heads, seq_k, head_dim]")
	}

	qHeadDim := query.Shape()[3]
	kHeadDim := key.Shape()[3]
	if qHeadDim != kHeadDim {
		panic("ScaledDotProductAttention: query and key must have same head_dim")
	}

	kSeqLen := key.Shape()[2]
	vSeqLen := value.Shape()[2]
	if kSeqLen != vSeqLen {
		panic("ScaledDotProductAttention: key and value must have same seq length")
	}
}

// CausalMask creates a causal (autoregressive) attention mask.
//
// Each position can only attend to itself and earlier positions. The mask
// is applied additively to attention scores before softmax:
//
//	// For seq_len=4:
//	// [[0,   -inf, -inf, -inf],
//	//  [0,   0,    -inf, -inf],
//	//  [0,   0,    0,    -inf],
//	//  [0,   0,    0,    0   ]]
//
// Shape: [1, 1, seq_len, seq_len] (broadcastable to [batch, heads, seq, seq]).
//
// The temporal attention path uses this so a frame's denoising never reads
// later frames.
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[float32, B] {
	mask := tensor.Zeros[float32](tensor.Shape{1, 1, seqLen, seqLen}, backend)

	negInf := float32(math.Inf(-1))
	data := mask.Data()

	for i := 0; i < seqLen; i++ {
		for j := i + 1; j < seqLen; j++ {
			data[i*seqLen+j] = negInf
		}
	}

	return mask
}
