package diffusion

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/nn"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// layerNormEpsilon matches the affine-free normalizations used throughout
// the transformer.
const layerNormEpsilon = 1e-6

// BlockConfig sizes one spatio-temporal transformer block.
type BlockConfig struct {
	Hidden    int // token dimension
	Heads     int // attention heads, must divide Hidden
	MLPHidden int // feed-forward expansion width
	GridH     int // token rows per frame
	GridW     int // token columns per frame
}

// Block is one layer of the video transformer: a spatial attention unit
// followed by a temporal attention unit, each with its own feed-forward
// and its own six-way adaptive layer-norm conditioning.
//
// The spatial unit mixes tokens within a frame; the temporal unit runs
// causal attention along the frame axis so a frame only sees its past.
// Both attentions use rotary position tables. All normalizations are
// affine-free: the conditioning projections supply the scale and shift.
//
// The modulation projections are zero-initialized, so a freshly built
// block is an identity mapping until weights are loaded.
type Block[B tensor.Backend] struct {
	SpatialNorm1 *nn.LayerNorm[B]
	SpatialAttn  *nn.SpatialAttention[B]
	SpatialNorm2 *nn.LayerNorm[B]
	SpatialMLP   *nn.MLP[B]
	SpatialAdaLN *nn.Linear[B] // hidden -> 6*hidden, zero-initialized

	TemporalNorm1 *nn.LayerNorm[B]
	TemporalAttn  *nn.TemporalAttention[B]
	TemporalNorm2 *nn.LayerNorm[B]
	TemporalMLP   *nn.MLP[B]
	TemporalAdaLN *nn.Linear[B] // hidden -> 6*hidden, zero-initialized

	act *nn.SiLU[B]
}

// NewBlock creates a transformer block for a fixed token grid.
//
// Panics on non-positive sizes or when Heads does not divide Hidden; the
// attention constructors enforce those invariants.
func NewBlock[B tensor.Backend](cfg BlockConfig, backend B) *Block[B] {
	if cfg.MLPHidden <= 0 {
		panic(fmt.Sprintf("block: MLP hidden width must be positive, got %d", cfg.MLPHidden))
	}

	b := &Block[B]{
		SpatialNorm1: nn.NewLayerNormNoAffine[B](cfg.Hidden, layerNormEpsilon, backend),
		SpatialAttn: nn.NewSpatialAttention[B](nn.SpatialAttentionConfig{
			EmbedDim:  cfg.Hidden,
			NumHeads:  cfg.Heads,
			GridH:     cfg.GridH,
			GridW:     cfg.GridW,
			UseRotary: true,
		}, backend),
		SpatialNorm2: nn.NewLayerNormNoAffine[B](cfg.Hidden, layerNormEpsilon, backend),
		SpatialMLP:   nn.NewMLP[B](cfg.Hidden, cfg.MLPHidden, backend),
		SpatialAdaLN: nn.NewLinear[B](cfg.Hidden, 6*cfg.Hidden, backend),

		TemporalNorm1: nn.NewLayerNormNoAffine[B](cfg.Hidden, layerNormEpsilon, backend),
		TemporalAttn: nn.NewTemporalAttention[B](nn.TemporalAttentionConfig{
			EmbedDim:  cfg.Hidden,
			NumHeads:  cfg.Heads,
			Causal:    true,
			UseRotary: true,
		}, backend),
		TemporalNorm2: nn.NewLayerNormNoAffine[B](cfg.Hidden, layerNormEpsilon, backend),
		TemporalMLP:   nn.NewMLP[B](cfg.Hidden, cfg.MLPHidden, backend),
		TemporalAdaLN: nn.NewLinear[B](cfg.Hidden, 6*cfg.Hidden, backend),

		act: nn.NewSiLU[B](),
	}

	b.SpatialAdaLN.Zero()
	b.TemporalAdaLN.Zero()

	return b
}

// Forward runs the block.
//
// Shapes:
//   - x: [batch, frames, tokens, hidden]
//   - cond: [batch, frames, hidden] per-frame conditioning vectors
//   - output: same shape as x
//
// Neither argument is modified.
func (b *Block[B]) Forward(x, cond *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	c := b.act.Forward(cond)

	mod := splitModulation(b.SpatialAdaLN.Forward(c))
	h := modulate(b.SpatialNorm1.Forward(x), mod.ShiftMSA, mod.ScaleMSA)
	x = gateBranch(b.SpatialAttn.Forward(h), mod.GateMSA).Add(x)
	h = modulate(b.SpatialNorm2.Forward(x), mod.ShiftMLP, mod.ScaleMLP)
	x = gateBranch(b.SpatialMLP.Forward(h), mod.GateMLP).Add(x)

	mod = splitModulation(b.TemporalAdaLN.Forward(c))
	h = modulate(b.TemporalNorm1.Forward(x), mod.ShiftMSA, mod.ScaleMSA)
	x = gateBranch(b.TemporalAttn.Forward(h), mod.GateMSA).Add(x)
	h = modulate(b.TemporalNorm2.Forward(x), mod.ShiftMLP, mod.ScaleMLP)
	x = gateBranch(b.TemporalMLP.Forward(h), mod.GateMLP).Add(x)

	return x
}

// Parameters returns the block's weights in layer order.
func (b *Block[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, b.SpatialAttn.Parameters()...)
	params = append(params, b.SpatialMLP.Parameters()...)
	params = append(params, b.SpatialAdaLN.Parameters()...)
	params = append(params, b.TemporalAttn.Parameters()...)
	params = append(params, b.TemporalMLP.Parameters()...)
	params = append(params, b.TemporalAdaLN.Parameters()...)
	return params
}
