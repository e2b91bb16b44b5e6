// Package diffusion provides the action-conditioned video transformer and
// its denoising math for Mirage.
//
// This package wraps the internal diffusion implementation and exports a
// clean public API for building the model, its noise schedule, and the
// forward (noising) process the training loss is defined on.
//
// Components:
//   - DiT: the spatio-temporal diffusion transformer
//   - Schedule: the sigmoid noise schedule and the DDIM index ladder
//   - AddNoise / VTarget / MSELoss: the v-prediction training forward pass
//
// Example usage:
//
//	import (
//	    "github.com/mirage-ml/mirage/backend/cpu"
//	    "github.com/mirage-ml/mirage/diffusion"
//	)
//
//	backend := cpu.New()
//	model, err := diffusion.New(diffusion.DefaultConfig(), backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Load checkpoint weights
//	sd, _ := f.LoadStateDict()
//	if err := model.LoadStateDict(sd); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Predict v for a window of noisy frames
//	v, err := model.Forward(frames, noiseLevels, actionIdx, actionCont)
package diffusion

import (
	"github.com/mirage-ml/mirage/internal/diffusion"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Model

// DefaultMLPRatio is the feed-forward expansion factor used when the config
// leaves MLPRatio unset.
const DefaultMLPRatio = diffusion.DefaultMLPRatio

// DefaultFrequencyDim is the timestep feature width used when the config
// leaves FreqDim unset.
const DefaultFrequencyDim = diffusion.DefaultFrequencyDim

// Config sizes a DiT model. All frame dimensions are in latent space.
//
// Parameters:
//   - InChannels: Latent channels per frame
//   - Hidden: Token dimension
//   - PatchSize: Square patch edge (must divide Height and Width)
//   - Depth: Transformer blocks
//   - Heads: Attention heads (must divide Hidden)
//   - MLPRatio: Feed-forward expansion factor (0 = DefaultMLPRatio)
//   - Height, Width: Latent frame size
//   - MaxFrames: Longest frame window a forward pass accepts
//   - FreqDim: Timestep feature width (0 = DefaultFrequencyDim)
//   - Space, ActionEmbedDim: Action conditioning (nil Space = unconditioned)
type Config = diffusion.Config

// DefaultConfig returns the sizing of the reference 500M checkpoint:
// 16-channel 18x32 latent frames, patch 2, a 16-block stack of width 1024
// with 16 heads, and a 32-frame window.
func DefaultConfig() Config {
	return diffusion.DefaultConfig()
}

// DiT is the spatio-temporal diffusion transformer.
//
// A forward pass patch-embeds every latent frame, builds one conditioning
// vector per frame from its noise level (plus the frame's action when the
// model is conditioned), runs the block stack, and projects back to latent
// frames through a final modulated layer. Temporal attention is causal, so
// a frame's output depends only on itself and earlier frames.
type DiT[B tensor.Backend] = diffusion.DiT[B]

// New builds a DiT from the config with freshly initialized weights. The
// modulation and output projections start at zero, so an unloaded model
// predicts zeros.
//
// Example:
//
//	cfg := diffusion.DefaultConfig()
//	model, err := diffusion.New(cfg, backend)
func New[B tensor.Backend](cfg Config, backend B) (*DiT[B], error) {
	return diffusion.New(cfg, backend)
}

// Noise Schedule

// Default endpoints of the sigmoid noise schedule, in logit units.
const (
	DefaultSigmoidStart = diffusion.DefaultSigmoidStart
	DefaultSigmoidEnd   = diffusion.DefaultSigmoidEnd
	DefaultSigmoidTau   = diffusion.DefaultSigmoidTau
)

// Schedule holds the diffusion noise schedule: per-level betas and the
// cumulative signal fractions used for noising, denoising, and the DDIM
// index ladder.
type Schedule = diffusion.Schedule

// NewSigmoidSchedule builds a schedule whose cumulative signal fraction
// follows a sigmoid interpolated between two logit endpoints.
//
// Example:
//
//	schedule, err := diffusion.NewSigmoidSchedule(1000,
//	    diffusion.DefaultSigmoidStart, diffusion.DefaultSigmoidEnd, diffusion.DefaultSigmoidTau)
func NewSigmoidSchedule(steps int, start, end, tau float64) (*Schedule, error) {
	return diffusion.NewSigmoidSchedule(steps, start, end, tau)
}

// Training Forward Pass

// AddNoise applies the forward noising process at a noise level:
//
//	x_t = sqrt(acc)*x0 + sqrt(1-acc)*noise
//
// Example:
//
//	noisy := diffusion.AddNoise(schedule, clean, noise, 500)
func AddNoise[B tensor.Backend](s *Schedule, x0, noise *tensor.Tensor[float32, B], noiseLevel int) *tensor.Tensor[float32, B] {
	return diffusion.AddNoise(s, x0, noise, noiseLevel)
}

// VTarget returns the v-prediction regression target at a noise level:
//
//	v = sqrt(acc)*noise - sqrt(1-acc)*x0
func VTarget[B tensor.Backend](s *Schedule, x0, noise *tensor.Tensor[float32, B], noiseLevel int) *tensor.Tensor[float32, B] {
	return diffusion.VTarget(s, x0, noise, noiseLevel)
}

// MSELoss computes the mean squared error between a prediction and its
// target.
func MSELoss[B tensor.Backend](pred, target *tensor.Tensor[float32, B]) float32 {
	return diffusion.MSELoss(pred, target)
}

// Errors

// State-dict loading errors, wrapped with the parameter name.
var (
	ErrMissingParameter = diffusion.ErrMissingParameter
	ErrUnknownParameter = diffusion.ErrUnknownParameter
)

// ShapeMismatchError reports an input whose shape differs from what a
// component was configured for.
type ShapeMismatchError = diffusion.ShapeMismatchError

// InvalidScheduleError reports noise-schedule parameters that cannot
// produce a usable schedule.
type InvalidScheduleError = diffusion.InvalidScheduleError

// NumericalInstabilityError reports non-finite values appearing in a
// computation that must stay finite, such as the recovered frame estimate
// during sampling.
type NumericalInstabilityError = diffusion.NumericalInstabilityError

// ResourceExhaustionError reports a failed allocation. The sampler surfaces
// it with the partial result produced so far.
type ResourceExhaustionError = diffusion.ResourceExhaustionError
