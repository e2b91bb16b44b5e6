// Package generate provides autoregressive video generation for Mirage.
//
// This package wraps the internal generate implementation and provides a
// clean public API for rolling out latent video frames with a denoising
// model.
//
// Components:
//   - Config: DDIM sampling configuration (steps, noise cap, window, seed)
//   - VideoGenerator: frame-by-frame rollout with a sliding context window
//
// Example usage:
//
//	import (
//	    "github.com/mirage-ml/mirage/backend/cpu"
//	    "github.com/mirage-ml/mirage/diffusion"
//	    "github.com/mirage-ml/mirage/generate"
//	)
//
//	backend := cpu.New()
//	model, _ := diffusion.New(diffusion.DefaultConfig(), backend)
//	schedule, _ := diffusion.NewSigmoidSchedule(1000,
//	    diffusion.DefaultSigmoidStart, diffusion.DefaultSigmoidEnd, diffusion.DefaultSigmoidTau)
//
//	gen, _ := generate.NewVideoGenerator(model, schedule, backend, generate.DefaultConfig())
//	result, err := gen.Generate(ctx, prompt, actions, nil, 16)
package generate

import (
	"github.com/mirage-ml/mirage/internal/diffusion"
	"github.com/mirage-ml/mirage/internal/generate"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Sampling Configuration

// Config configures autoregressive DDIM sampling.
//
// Parameters:
//   - DDIMNoiseSteps: Denoising steps per frame (ladder length)
//   - MaxNoiseLevel: Top of the schedule new frames start from
//   - NoiseAbsMax: Clamp bound for drawn noise
//   - CtxMaxNoiseIdx: Cap on the ladder index used to re-noise context frames
//   - NPromptFrames: Leading frames taken from the prompt as-is
//   - MaxFrames: Sliding window length (context plus the frame in flight)
//   - Seed: Noise seed (-1 picks a random seed)
//   - OnStep: Optional per-step callback for progress reporting
type Config = generate.Config

// StepInfo describes one denoising step for progress callbacks.
type StepInfo = generate.StepInfo

// DefaultConfig returns the sampling defaults used by the reference
// checkpoints.
//
// Defaults:
//   - DDIMNoiseSteps: 10
//   - MaxNoiseLevel: 1000
//   - NoiseAbsMax: 20
//   - CtxMaxNoiseIdx: 3
//   - NPromptFrames: 1
//   - MaxFrames: 32
//   - Seed: -1 (random)
func DefaultConfig() Config {
	return generate.DefaultConfig()
}

// Video Generator

// Denoiser is the model interface the generator drives. The diffusion
// transformer implements it.
type Denoiser[B tensor.Backend] = generate.Denoiser[B]

// VideoResult holds generated frames. Partial is set when generation was
// cancelled or failed after some frames had already finished.
type VideoResult[B tensor.Backend] = generate.VideoResult[B]

// VideoGenerator rolls out video frames one at a time, conditioning each
// new frame on a sliding window of earlier frames.
type VideoGenerator[B tensor.Backend] = generate.VideoGenerator[B]

// NewVideoGenerator creates a video generator.
//
// The schedule must cover MaxNoiseLevel. Returns an error when the config
// is invalid or the noise ladder cannot be built.
//
// Example:
//
//	cfg := generate.DefaultConfig()
//	cfg.Seed = 42
//	gen, err := generate.NewVideoGenerator(model, schedule, backend, cfg)
//
//	result, err := gen.Generate(ctx, prompt, actionIdx, actionCont, 16)
//	if err != nil && !result.Partial {
//	    return err
//	}
//	for _, frame := range result.Frames { ... }
func NewVideoGenerator[B tensor.Backend](model Denoiser[B], schedule *diffusion.Schedule, backend B, cfg Config) (*VideoGenerator[B], error) {
	return generate.NewVideoGenerator(model, schedule, backend, cfg)
}
