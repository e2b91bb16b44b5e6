package nn

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// The axial attention layers operate on token grids shaped
// [batch, frames, tokens, dim], where tokens is the flattened H*W patch
// grid of one frame. Spatial attention mixes tokens within a frame,
// temporal attention mixes the same token position across frames; neither
// sees the other axis, which keeps the score matrices small.

// SpatialAttentionConfig configures attention over the token grid of a
// single frame.
type SpatialAttentionConfig struct {
	EmbedDim int // token dimension
	NumHeads int // must divide EmbedDim
	GridH    int // token rows per frame
	GridW    int // token columns per frame

	// UseRotary selects rotary position tables for Q/K. When false, an
	// additive sinusoidal grid encoding is applied before the projections.
	UseRotary bool
	// MaxFreq is the pixel frequency ceiling for the rotary tables;
	// non-positive selects DefaultRotaryMaxFreq.
	MaxFreq float64
}

// SpatialAttention attends over the tokens of each frame independently.
// The batch and frame axes flatten together, so no information crosses
// frames here.
type SpatialAttention[B tensor.Backend] struct {
	WQ *Linear[B] // query projection, no bias
	WK *Linear[B] // key projection, no bias
	WV *Linear[B] // value projection, no bias
	WO *Linear[B] // output projection

	NumHeads int
	HeadDim  int
	EmbedDim int

	gridH, gridW int
	rotary       *RotaryCache[B]
	posEnc       *SinusoidalPositionalEncoding2D[B]
	backend      B
}

// NewSpatialAttention creates a spatial attention layer for a fixed token
// grid.
//
// Panics on a non-positive grid or when NumHeads does not divide EmbedDim.
func NewSpatialAttention[B tensor.Backend](cfg SpatialAttentionConfig, backend B) *SpatialAttention[B] {
	if cfg.EmbedDim <= 0 || cfg.NumHeads <= 0 || cfg.EmbedDim%cfg.NumHeads != 0 {
		panic(fmt.Sprintf("SpatialAttention: embed dim %d must be divisible by heads %d", cfg.EmbedDim, cfg.NumHeads))
	}
	if cfg.GridH <= 0 || cfg.GridW <= 0 {
		panic(fmt.Sprintf("SpatialAttention: grid must be positive, got %dx%d", cfg.GridH, cfg.GridW))
	}

	s := &SpatialAttention[B]{
		WQ:       NewLinearNoBias[B](cfg.EmbedDim, cfg.EmbedDim, backend),
		WK:       NewLinearNoBias[B](cfg.EmbedDim, cfg.EmbedDim, backend),
		WV:       NewLinearNoBias[B](cfg.EmbedDim, cfg.EmbedDim, backend),
		WO:       NewLinear[B](cfg.EmbedDim, cfg.EmbedDim, backend),
		NumHeads: cfg.NumHeads,
		HeadDim:  cfg.EmbedDim / cfg.NumHeads,
		EmbedDim: cfg.EmbedDim,
		gridH:    cfg.GridH,
		gridW:    cfg.GridW,
		backend:  backend,
	}

	if cfg.UseRotary {
		s.rotary = NewSpatialRotary[B](s.HeadDim, cfg.MaxFreq, backend)
		if err := s.rotary.EnsureGrid(cfg.GridH, cfg.GridW); err != nil {
			panic(fmt.Sprintf("SpatialAttention: %v", err))
		}
	} else {
		s.posEnc = NewSinusoidalPositionalEncoding2D[B](cfg.GridH, cfg.GridW, cfg.EmbedDim, backend)
	}

	return s
}

// Forward attends within each frame.
//
// Shapes:
//   - input: [batch, frames, tokens, dim] with tokens == gridH*gridW
//   - output: same as input
func (s *SpatialAttention[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("SpatialAttention: input must be 4D [batch, frames, tokens, dim], got shape %v", shape))
	}
	if shape[2] != s.gridH*s.gridW {
		panic(fmt.Sprintf("SpatialAttention: expected %d grid tokens, got %d", s.gridH*s.gridW, shape[2]))
	}
	if shape[3] != s.EmbedDim {
		panic(fmt.Sprintf("SpatialAttention: expected embed dim %d, got %d", s.EmbedDim, shape[3]))
	}

	batch, frames, tokens := shape[0], shape[1], shape[2]
	groups := batch * frames

	h := x.Reshape(groups, tokens, s.EmbedDim)
	if s.posEnc != nil {
		h = s.posEnc.Forward().Add(h)
	}

	q := splitHeads(s.WQ.Forward(h), groups, tokens, s.NumHeads, s.HeadDim)
	k := splitHeads(s.WK.Forward(h), groups, tokens, s.NumHeads, s.HeadDim)
	v := splitHeads(s.WV.Forward(h), groups, tokens, s.NumHeads, s.HeadDim)

	if s.rotary != nil {
		q = s.rotary.Rotate(q, 0)
		k = s.rotary.Rotate(k, 0)
	}

	attnOut, _ := ScaledDotProductAttention(q, k, v, nil, 0)

	out := s.WO.Forward(mergeHeads(attnOut, groups, tokens, s.EmbedDim))
	return out.Reshape(batch, frames, tokens, s.EmbedDim)
}

// Parameters returns the four projection layers' parameters.
func (s *SpatialAttention[B]) Parameters() []*Parameter[B] {
	return projectionParams(s.WQ, s.WK, s.WV, s.WO)
}

// TemporalAttentionConfig configures attention along the frame axis.
type TemporalAttentionConfig struct {
	EmbedDim int // token dimension
	NumHeads int // must divide EmbedDim

	// Causal restricts each frame to attend to itself and earlier frames
	// only.
	Causal bool

	// UseRotary selects rotary position tables for Q/K. When false, an
	// additive sinusoidal step encoding is applied before the projections.
	UseRotary bool
	// Theta is the rotary frequency base; non-positive selects
	// DefaultRotaryTheta.
	Theta float64
	// MaxFrames bounds the sinusoidal table when rotary is disabled.
	// Required in that case; ignored otherwise.
	MaxFrames int
}

// TemporalAttention attends across frames at each token position: the
// batch and token axes flatten together, so spatial positions never mix
// here. With Causal set, information only flows forward in time.
type TemporalAttention[B tensor.Backend] struct {
	WQ *Linear[B] // query projection, no bias
	WK *Linear[B] // key projection, no bias
	WV *Linear[B] // value projection, no bias
	WO *Linear[B] // output projection

	NumHeads int
	HeadDim  int
	EmbedDim int
	Causal   bool

	rotary  *RotaryCache[B]
	posEnc  *SinusoidalPositionalEncoding[B]
	backend B
}

// NewTemporalAttention creates a temporal attention layer.
//
// Panics when NumHeads does not divide EmbedDim, or when rotary is
// disabled without a positive MaxFrames for the sinusoidal table.
func NewTemporalAttention[B tensor.Backend](cfg TemporalAttentionConfig, backend B) *TemporalAttention[B] {
	if cfg.EmbedDim <= 0 || cfg.NumHeads <= 0 || cfg.EmbedDim%cfg.NumHeads != 0 {
		panic(fmt.Sprintf("TemporalAttention: embed dim %d must be divisible by heads %d", cfg.EmbedDim, cfg.NumHeads))
	}

	t := &TemporalAttention[B]{
		WQ:       NewLinearNoBias[B](cfg.EmbedDim, cfg.EmbedDim, backend),
		WK:       NewLinearNoBias[B](cfg.EmbedDim, cfg.EmbedDim, backend),
		WV:       NewLinearNoBias[B](cfg.EmbedDim, cfg.EmbedDim, backend),
		WO:       NewLinear[B](cfg.EmbedDim, cfg.EmbedDim, backend),
		NumHeads: cfg.NumHeads,
		HeadDim:  cfg.EmbedDim / cfg.NumHeads,
		EmbedDim: cfg.EmbedDim,
		Causal:   cfg.Causal,
		backend:  backend,
	}

	if cfg.UseRotary {
		t.rotary = NewTemporalRotary[B](t.HeadDim, cfg.Theta, backend)
	} else {
		if cfg.MaxFrames <= 0 {
			panic("TemporalAttention: MaxFrames required when rotary is disabled")
		}
		t.posEnc = NewSinusoidalPositionalEncoding[B](cfg.MaxFrames, cfg.EmbedDim, backend)
	}

	return t
}

// Forward attends along the frame axis at every token position.
//
// Shapes:
//   - input: [batch, frames, tokens, dim]
//   - output: same as input
func (t *TemporalAttention[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("TemporalAttention: input must be 4D [batch, frames, tokens, dim], got shape %v", shape))
	}
	if shape[3] != t.EmbedDim {
		panic(fmt.Sprintf("TemporalAttention: expected embed dim %d, got %d", t.EmbedDim, shape[3]))
	}

	batch, frames, tokens := shape[0], shape[1], shape[2]
	groups := batch * tokens

	// [batch, frames, tokens, dim] -> [batch*tokens, frames, dim]
	h := x.Transpose(0, 2, 1, 3).Reshape(groups, frames, t.EmbedDim)
	if t.posEnc != nil {
		h = t.posEnc.Forward(frames).Add(h)
	}

	q := splitHeads(t.WQ.Forward(h), groups, frames, t.NumHeads, t.HeadDim)
	k := splitHeads(t.WK.Forward(h), groups, frames, t.NumHeads, t.HeadDim)
	v := splitHeads(t.WV.Forward(h), groups, frames, t.NumHeads, t.HeadDim)

	if t.rotary != nil {
		if err := t.rotary.EnsureLen(frames); err != nil {
			panic(fmt.Sprintf("TemporalAttention: %v", err))
		}
		q = t.rotary.Rotate(q, 0)
		k = t.rotary.Rotate(k, 0)
	}

	var mask *tensor.Tensor[float32, B]
	if t.Causal && frames > 1 {
		mask = CausalMask(frames, t.backend)
	}

	attnOut, _ := ScaledDotProductAttention(q, k, v, mask, 0)

	out := t.WO.Forward(mergeHeads(attnOut, groups, frames, t.EmbedDim))
	return out.Reshape(batch, tokens, frames, t.EmbedDim).Transpose(0, 2, 1, 3)
}

// Parameters returns the four projection layers' parameters.
func (t *TemporalAttention[B]) Parameters() []*Parameter[B] {
	return projectionParams(t.WQ, t.WK, t.WV, t.WO)
}

// splitHeads reshapes [groups, seq, dim] to [groups, heads, seq, headDim].
func splitHeads[B tensor.Backend](x *tensor.Tensor[float32, B], groups, seq, numHeads, headDim int) *tensor.Tensor[float32, B] {
	return x.Reshape(groups, seq, numHeads, headDim).Transpose(0, 2, 1, 3)
}

// mergeHeads is the inverse: [groups, heads, seq, headDim] back to
// [groups, seq, dim].
func mergeHeads[B tensor.Backend](x *tensor.Tensor[float32, B], groups, seq, embedDim int) *tensor.Tensor[float32, B] {
	return x.Transpose(0, 2, 1, 3).Reshape(groups, seq, embedDim)
}

func projectionParams[B tensor.Backend](layers ...*Linear[B]) []*Parameter[B] {
	var params []*Parameter[B]
	for _, l := range layers {
		params = append(params, l.Parameters()...)
	}
	return params
}
