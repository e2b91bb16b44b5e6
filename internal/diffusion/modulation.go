package diffusion

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// ModulationSet is the six-way adaptive layer-norm bundle one transformer
// sub-block consumes: shift/scale pairs for its two normalizations plus
// residual gates for the attention and MLP branches. Each field is
// [batch, frames, hidden] and broadcasts over the token axis.
type ModulationSet[B tensor.Backend] struct {
	ShiftMSA *tensor.Tensor[float32, B]
	ScaleMSA *tensor.Tensor[float32, B]
	GateMSA  *tensor.Tensor[float32, B]
	ShiftMLP *tensor.Tensor[float32, B]
	ScaleMLP *tensor.Tensor[float32, B]
	GateMLP  *tensor.Tensor[float32, B]
}

// splitModulation slices a [batch, frames, 6*hidden] conditioning
// projection into the named set, in the standard DiT order.
func splitModulation[B tensor.Backend](v *tensor.Tensor[float32, B]) ModulationSet[B] {
	shape := v.Shape()
	last := shape[len(shape)-1]
	if last%6 != 0 {
		panic(fmt.Sprintf("modulation: trailing dim %d not divisible by 6", last))
	}

	parts := v.Chunk(6, -1)
	return ModulationSet[B]{
		ShiftMSA: parts[0],
		ScaleMSA: parts[1],
		GateMSA:  parts[2],
		ShiftMLP: parts[3],
		ScaleMLP: parts[4],
		GateMLP:  parts[5],
	}
}

// modulate applies the conditioning transform x*(1+scale) + shift,
// broadcasting the per-frame vectors over tokens.
func modulate[B tensor.Backend](x, shift, scale *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s := scale.Unsqueeze(2).AddScalar(1)
	return s.Mul(x).Add(shift.Unsqueeze(2))
}

// gateBranch scales a residual branch by its per-frame gate vector.
func gateBranch[B tensor.Backend](branch, gate *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return branch.Mul(gate.Unsqueeze(2))
}
