// Package vae defines the boundary between pixel frames and the latent
// space Mirage models work in.
//
// The heavy autoencoder itself lives outside this module; pipelines hand
// frames across the Codec interface and the engine only ever sees latents.
//
// Example usage:
//
//	import (
//	    "github.com/mirage-ml/mirage/vae"
//	)
//
//	var codec vae.Codec[*cpu.CPUBackend] = myEncoder
//
//	latents, err := codec.Encode(frames)
//	if err != nil {
//	    return err
//	}
//	scaled := vae.ScaleLatents(latents) // model space
package vae

import (
	"github.com/mirage-ml/mirage/internal/tensor"
	"github.com/mirage-ml/mirage/internal/vae"
)

// LatentScale is the linear factor applied to encoder outputs before they
// enter the transformer, matching the scaling the model was trained with.
const LatentScale = vae.LatentScale

// Codec converts between pixel frames and latent frames. Implementations
// must preserve batch and temporal order and must not retain or mutate
// their inputs.
//
// Shapes:
//   - frames: [batch, time, channels, height, width] pixels
//   - latents: [batch, time, latentChannels, latentH, latentW]
type Codec[B tensor.Backend] = vae.Codec[B]

// Identity is a pass-through codec for latent-space pipelines and tests:
// both directions return a copy of the input.
type Identity[B tensor.Backend] = vae.Identity[B]

// ScaleLatents maps raw encoder outputs into model space.
func ScaleLatents[B tensor.Backend](latents *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return vae.ScaleLatents(latents)
}

// UnscaleLatents maps model-space latents back to encoder range before
// decoding.
func UnscaleLatents[B tensor.Backend](latents *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return vae.UnscaleLatents(latents)
}
