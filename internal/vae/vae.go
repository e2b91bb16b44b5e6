// Package vae defines the boundary between pixel frames and the latent
// space the transformer works in. The heavy autoencoder itself lives
// outside this module; pipelines hand frames across this interface and the
// engine only ever sees latents.
package vae

import (
	"github.com/mirage-ml/mirage/internal/tensor"
)

// LatentScale is the linear factor applied to encoder outputs before they
// enter the transformer, matching the scaling the model was trained with.
const LatentScale = 0.07843137255

// Codec converts between pixel frames and latent frames. Implementations
// must preserve batch and temporal order and must not retain or mutate
// their inputs.
//
// Shapes:
//   - frames: [batch, time, channels, height, width] pixels
//   - latents: [batch, time, latentChannels, latentH, latentW]
type Codec[B tensor.Backend] interface {
	Encode(frames *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error)
	Decode(latents *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error)
}

// ScaleLatents maps raw encoder outputs into model space.
func ScaleLatents[B tensor.Backend](latents *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return latents.MulScalar(LatentScale)
}

// UnscaleLatents maps model-space latents back to encoder range before
// decoding.
func UnscaleLatents[B tensor.Backend](latents *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return latents.DivScalar(LatentScale)
}

// Identity is a pass-through codec for latent-space pipelines and tests:
// both directions return a copy of the input.
type Identity[B tensor.Backend] struct{}

// Encode returns a copy of frames.
func (Identity[B]) Encode(frames *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return frames.Clone(), nil
}

// Decode returns a copy of latents.
func (Identity[B]) Decode(latents *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return latents.Clone(), nil
}
