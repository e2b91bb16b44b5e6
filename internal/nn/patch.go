package nn

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// PatchEmbed projects non-overlapping pixel patches to token vectors with
// a strided convolution (kernel = stride = patch size). The output keeps
// the [gridH, gridW] layout so attention layers can recover 2D positions.
type PatchEmbed[B tensor.Backend] struct {
	Weight *Parameter[B] // [hidden, channels, patch, patch]
	Bias   *Parameter[B] // [hidden]
	Norm   *LayerNorm[B] // optional post-projection norm, nil when disabled

	PatchSize  int
	InChannels int
	Hidden     int
	backend    B
}

// NewPatchEmbed creates a patch embedding layer.
//
// The projection weight uses Xavier initialization over the flattened
// patch (fan-in = channels*patch*patch). With normalize set, a LayerNorm
// (eps 1e-6) runs on each token after projection.
func NewPatchEmbed[B tensor.Backend](inChannels, hidden, patchSize int, normalize bool, backend B) *PatchEmbed[B] {
	if inChannels <= 0 || hidden <= 0 || patchSize <= 0 {
		panic(fmt.Sprintf("PatchEmbed: channels, hidden, and patch size must be positive, got %d, %d, %d",
			inChannels, hidden, patchSize))
	}

	fanIn := inChannels * patchSize * patchSize
	weight := Xavier[B](fanIn, hidden, tensor.Shape{hidden, inChannels, patchSize, patchSize}, backend)

	p := &PatchEmbed[B]{
		Weight:     NewParameter[B]("weight", weight),
		Bias:       NewParameter[B]("bias", Zeros[B](tensor.Shape{hidden}, backend)),
		PatchSize:  patchSize,
		InChannels: inChannels,
		Hidden:     hidden,
		backend:    backend,
	}

	if normalize {
		p.Norm = NewLayerNorm[B](hidden, 1e-6, backend)
	}

	return p
}

// Forward projects pixels to tokens.
//
// Shapes:
//   - input: [batch, channels, height, width]
//   - output: [batch, height/patch, width/patch, hidden]
//
// Panics when the channel count differs or height/width are not divisible
// by the patch size.
func (p *PatchEmbed[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("PatchEmbed: input must be 4D [batch, channels, height, width], got shape %v", shape))
	}
	if shape[1] != p.InChannels {
		panic(fmt.Sprintf("PatchEmbed: expected %d channels, got %d", p.InChannels, shape[1]))
	}
	if shape[2]%p.PatchSize != 0 || shape[3]%p.PatchSize != 0 {
		panic(fmt.Sprintf("PatchEmbed: %dx%d input not divisible by patch size %d", shape[2], shape[3], p.PatchSize))
	}

	conv := x.Conv2D(p.Weight.Tensor(), p.PatchSize, 0)
	conv = conv.Add(p.Bias.Tensor().Reshape(1, p.Hidden, 1, 1))

	// [batch, hidden, gridH, gridW] -> [batch, gridH, gridW, hidden]
	tokens := conv.Transpose(0, 2, 3, 1)
	if p.Norm != nil {
		tokens = p.Norm.Forward(tokens)
	}
	return tokens
}

// Parameters returns the projection weight and bias, plus the norm's
// parameters when enabled.
func (p *PatchEmbed[B]) Parameters() []*Parameter[B] {
	params := []*Parameter[B]{p.Weight, p.Bias}
	if p.Norm != nil {
		params = append(params, p.Norm.Parameters()...)
	}
	return params
}

// Unpatchify inverts a token grid back to pixel layout.
//
// Each token vector holds one patch in (row, col, channel) order: element
// (py*patch+px)*channels + c lands at pixel (gy*patch+py, gx*patch+px) of
// channel c. The final projection of the transformer emits this layout.
//
// Shapes:
//   - tokens: [batch, gridH, gridW, patch*patch*channels]
//   - output: [batch, channels, gridH*patch, gridW*patch]
func Unpatchify[B tensor.Backend](tokens *tensor.Tensor[float32, B], patchSize, channels int) *tensor.Tensor[float32, B] {
	shape := tokens.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("Unpatchify: tokens must be 4D [batch, gridH, gridW, dim], got shape %v", shape))
	}
	tokenDim := patchSize * patchSize * channels
	if shape[3] != tokenDim {
		panic(fmt.Sprintf("Unpatchify: token dim %d does not match patch %d with %d channels", shape[3], patchSize, channels))
	}

	batch, gh, gw := shape[0], shape[1], shape[2]
	outH, outW := gh*patchSize, gw*patchSize

	src := tokens.Data()
	dst := make([]float32, batch*channels*outH*outW)

	for n := 0; n < batch; n++ {
		for gy := 0; gy < gh; gy++ {
			for gx := 0; gx < gw; gx++ {
				tokBase := ((n*gh+gy)*gw + gx) * tokenDim
				for py := 0; py < patchSize; py++ {
					oy := gy*patchSize + py
					for px := 0; px < patchSize; px++ {
						ox := gx*patchSize + px
						for c := 0; c < channels; c++ {
							dst[((n*channels+c)*outH+oy)*outW+ox] = src[tokBase+(py*patchSize+px)*channels+c]
						}
					}
				}
			}
		}
	}

	out, err := tensor.FromSlice[float32, B](dst, tensor.Shape{batch, channels, outH, outW}, tokens.Backend())
	if err != nil {
		panic(fmt.Sprintf("Unpatchify: failed to create output tensor: %v", err))
	}
	return out
}
