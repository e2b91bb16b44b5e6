// Copyright 2025 Mirage ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/mirage-ml/mirage/internal/nn"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// The video transformer factors attention over a [batch, frames, tokens, dim]
// grid into two axial passes: SpatialAttention mixes the tokens of each
// frame, TemporalAttention mixes the same token position across frames.
// Neither sees the other axis, which keeps the score matrices small.

// SpatialAttentionConfig configures attention over the token grid of a
// single frame.
//
// Fields:
//   - EmbedDim: Token dimension (e.g., 1024)
//   - NumHeads: Number of attention heads (must divide EmbedDim)
//   - GridH, GridW: Token grid size of one frame
//   - UseRotary: true = rotary Q/K tables, false = additive sinusoidal grid encoding
//   - MaxFreq: Pixel frequency ceiling for rotary (0 = DefaultRotaryMaxFreq)
//
// Example:
//
//	config := nn.SpatialAttentionConfig{
//	    EmbedDim:  1024,
//	    NumHeads:  16,
//	    GridH:     9,
//	    GridW:     16,
//	    UseRotary: true,
//	}
type SpatialAttentionConfig = nn.SpatialAttentionConfig

// SpatialAttention attends over the tokens of each frame independently.
// The batch and frame axes flatten together, so no information crosses
// frames here.
type SpatialAttention[B tensor.Backend] = nn.SpatialAttention[B]

// NewSpatialAttention creates a spatial attention layer for a fixed token
// grid.
//
// Example:
//
//	backend := cpu.New()
//	attn := nn.NewSpatialAttention(nn.SpatialAttentionConfig{
//	    EmbedDim: 1024, NumHeads: 16, GridH: 9, GridW: 16, UseRotary: true,
//	}, backend)
//	output := attn.Forward(x)  // [batch, frames, 144, 1024]
func NewSpatialAttention[B tensor.Backend](cfg SpatialAttentionConfig, backend B) *SpatialAttention[B] {
	return nn.NewSpatialAttention(cfg, backend)
}

// TemporalAttentionConfig configures attention along the frame axis.
//
// Fields:
//   - EmbedDim: Token dimension
//   - NumHeads: Number of attention heads (must divide EmbedDim)
//   - Causal: true = each frame attends only to itself and earlier frames
//   - UseRotary: true = rotary Q/K tables, false = additive sinusoidal step encoding
//   - Theta: Rotary frequency base (0 = DefaultRotaryTheta)
//   - MaxFrames: Sinusoidal table bound when rotary is disabled
//
// Example:
//
//	config := nn.TemporalAttentionConfig{
//	    EmbedDim:  1024,
//	    NumHeads:  16,
//	    Causal:    true,
//	    UseRotary: true,
//	}
type TemporalAttentionConfig = nn.TemporalAttentionConfig

// TemporalAttention attends across frames at each token position: the batch
// and token axes flatten together, so spatial positions never mix here.
// With Causal set, information only flows forward in time.
type TemporalAttention[B tensor.Backend] = nn.TemporalAttention[B]

// NewTemporalAttention creates a temporal attention layer.
//
// Example:
//
//	backend := cpu.New()
//	attn := nn.NewTemporalAttention(nn.TemporalAttentionConfig{
//	    EmbedDim: 1024, NumHeads: 16, Causal: true, UseRotary: true,
//	}, backend)
//	output := attn.Forward(x)  // [batch, frames, tokens, 1024]
func NewTemporalAttention[B tensor.Backend](cfg TemporalAttentionConfig, backend B) *TemporalAttention[B] {
	return nn.NewTemporalAttention(cfg, backend)
}

// PatchEmbed projects non-overlapping pixel patches to token vectors with a
// strided convolution (kernel = stride = patch size). The output keeps the
// [gridH, gridW] layout so attention layers can recover 2D positions.
type PatchEmbed[B tensor.Backend] = nn.PatchEmbed[B]

// NewPatchEmbed creates a patch embedding layer.
//
// With normalize set, a LayerNorm (eps 1e-6) runs on each token after
// projection.
//
// Example:
//
//	backend := cpu.New()
//	patch := nn.NewPatchEmbed(16, 1024, 2, false, backend)
//	tokens := patch.Forward(frame)  // [batch, 16, 18, 32] -> [batch, 9, 16, 1024]
func NewPatchEmbed[B tensor.Backend](inChannels, hidden, patchSize int, normalize bool, backend B) *PatchEmbed[B] {
	return nn.NewPatchEmbed(inChannels, hidden, patchSize, normalize, backend)
}

// Unpatchify inverts a token grid back to pixel layout.
//
// Each token vector holds one patch in (row, col, channel) order. The final
// projection of the transformer emits this layout.
//
// Shapes:
//   - tokens: [batch, gridH, gridW, patch*patch*channels]
//   - output: [batch, channels, gridH*patch, gridW*patch]
//
// Example:
//
//	pixels := nn.Unpatchify(tokens, 2, 16)  // [batch, 9, 16, 64] -> [batch, 16, 18, 32]
func Unpatchify[B tensor.Backend](tokens *tensor.Tensor[float32, B], patchSize, channels int) *tensor.Tensor[float32, B] {
	return nn.Unpatchify(tokens, patchSize, channels)
}
