package generate

import "fmt"

// Config configures autoregressive video sampling.
type Config struct {
	// DDIMNoiseSteps is the number of denoising steps per frame.
	DDIMNoiseSteps int

	// MaxNoiseLevel tops the DDIM ladder. It cannot exceed the noise
	// schedule's step count.
	MaxNoiseLevel int

	// NoiseAbsMax clamps sampled gaussian noise to [-NoiseAbsMax, NoiseAbsMax].
	NoiseAbsMax float64

	// CtxMaxNoiseIdx caps the ladder position context frames are re-noised
	// to, in [0, DDIMNoiseSteps]. Re-noising draws fresh noise every step;
	// it is stochastic stabilization, not a cached perturbation.
	CtxMaxNoiseIdx int

	// NPromptFrames is how many leading prompt frames prime the context.
	NPromptFrames int

	// MaxFrames bounds the window passed to the model, prompt and generated
	// frames together.
	MaxFrames int

	// Seed seeds the noise source. -1 picks a random seed; any other value
	// makes generation reproducible for identical inputs.
	Seed int64

	// OnStep, when set, observes every denoising step.
	OnStep func(StepInfo)
}

// StepInfo describes one denoising step.
type StepInfo struct {
	FrameIndex int // index of the frame being denoised
	NoiseIndex int // ladder position, DDIMNoiseSteps down to 1
	WindowLen  int // frames in the model window this step
}

// DefaultConfig returns sensible sampling defaults for a 1000-level
// schedule.
func DefaultConfig() Config {
	return Config{
		DDIMNoiseSteps: 10,
		MaxNoiseLevel:  1000,
		NoiseAbsMax:    20,
		CtxMaxNoiseIdx: 3,
		NPromptFrames:  1,
		MaxFrames:      32,
		Seed:           -1,
	}
}

// Validate checks the sampling parameters.
func (c Config) Validate() error {
	switch {
	case c.DDIMNoiseSteps < 1:
		return fmt.Errorf("sampling config: ddim noise steps must be at least 1, got %d", c.DDIMNoiseSteps)
	case c.MaxNoiseLevel < 1:
		return fmt.Errorf("sampling config: max noise level must be at least 1, got %d", c.MaxNoiseLevel)
	case c.NoiseAbsMax <= 0:
		return fmt.Errorf("sampling config: noise abs max must be positive, got %g", c.NoiseAbsMax)
	case c.CtxMaxNoiseIdx < 0 || c.CtxMaxNoiseIdx > c.DDIMNoiseSteps:
		return fmt.Errorf("sampling config: ctx max noise idx must be in [0, %d], got %d", c.DDIMNoiseSteps, c.CtxMaxNoiseIdx)
	case c.NPromptFrames < 1:
		return fmt.Errorf("sampling config: prompt frames must be at least 1, got %d", c.NPromptFrames)
	case c.MaxFrames < 1:
		return fmt.Errorf("sampling config: max frames must be at least 1, got %d", c.MaxFrames)
	}
	return nil
}
