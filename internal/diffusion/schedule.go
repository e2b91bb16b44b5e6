package diffusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Default endpoints of the sigmoid noise schedule, in logit units.
const (
	DefaultSigmoidStart = -3.0
	DefaultSigmoidEnd   = 3.0
	DefaultSigmoidTau   = 1.0
)

// betaCeil bounds per-step betas so the cumulative product stays strictly
// positive even where the raw schedule reaches zero.
const betaCeil = 0.999

// Schedule holds the diffusion noise schedule: per-level betas and the
// cumulative signal fractions used for noising, denoising, and the DDIM
// index ladder.
//
// AlphasCumprod has steps+1 entries indexed by noise level + 1: entry 0 is
// the clean level (exactly 1), entry k+1 the product after k+1 noising
// steps. Values are strictly positive and non-increasing.
type Schedule struct {
	steps         int
	betas         []float64 // steps entries, each in [0, betaCeil]
	alphasCumprod []float64 // steps+1 entries, [0] = 1
}

// NewSigmoidSchedule builds a schedule whose cumulative signal fraction
// follows a sigmoid interpolated between two logit endpoints:
//
//	acc(t) = (sigmoid(end/tau) - sigmoid((start+t*(end-start))/tau)) /
//	         (sigmoid(end/tau) - sigmoid(start/tau))
//
// over steps+1 evenly spaced points, normalized to start at 1. Betas derive
// from consecutive ratios, clipped to [0, betaCeil], and the stored
// cumulative product is rebuilt from the clipped betas.
func NewSigmoidSchedule(steps int, start, end, tau float64) (*Schedule, error) {
	if steps < 1 {
		return nil, &InvalidScheduleError{Param: "steps", Reason: fmt.Sprintf("must be at least 1, got %d", steps)}
	}
	if tau <= 0 {
		return nil, &InvalidScheduleError{Param: "tau", Reason: fmt.Sprintf("must be positive, got %g", tau)}
	}

	vStart := sigmoid(start / tau)
	vEnd := sigmoid(end / tau)
	if math.Abs(vEnd-vStart) < 1e-10 {
		return nil, &InvalidScheduleError{
			Param:  "start/end",
			Reason: fmt.Sprintf("endpoints %g and %g produce a flat schedule", start, end),
		}
	}

	t := make([]float64, steps+1)
	floats.Span(t, 0, 1)

	raw := make([]float64, steps+1)
	for i := range raw {
		raw[i] = (vEnd - sigmoid((start+t[i]*(end-start))/tau)) / (vEnd - vStart)
	}
	for i := range raw {
		raw[i] /= raw[0]
	}

	betas := make([]float64, steps)
	for i := range betas {
		beta := 1 - raw[i+1]/raw[i]
		betas[i] = math.Min(math.Max(beta, 0), betaCeil)
	}

	acc := make([]float64, steps+1)
	acc[0] = 1
	for i, beta := range betas {
		acc[i+1] = acc[i] * (1 - beta)
	}

	return &Schedule{steps: steps, betas: betas, alphasCumprod: acc}, nil
}

// Steps returns the number of noise levels.
func (s *Schedule) Steps() int {
	return s.steps
}

// Betas returns the per-level betas. Callers must not mutate the slice.
func (s *Schedule) Betas() []float64 {
	return s.betas
}

// AlphasCumprod returns the cumulative signal fractions, clean level first.
// Callers must not mutate the slice.
func (s *Schedule) AlphasCumprod() []float64 {
	return s.alphasCumprod
}

// AlphaCumprod returns the cumulative signal fraction at a noise level.
// Level -1 is the clean level and returns exactly 1.
//
// Panics when the level is outside [-1, Steps()).
func (s *Schedule) AlphaCumprod(noiseLevel int) float64 {
	if noiseLevel < -1 || noiseLevel >= s.steps {
		panic(fmt.Sprintf("schedule: noise level %d out of range [-1, %d)", noiseLevel, s.steps))
	}
	return s.alphasCumprod[noiseLevel+1]
}

// NoiseIndices returns the DDIM ladder: ddimSteps+1 noise levels evenly
// spaced from -1 (clean) to maxLevel-1, rounded to integers. maxLevel
// tops the ladder and cannot exceed Steps(). The sampler walks the ladder
// top-down, denoising one rung per step.
func (s *Schedule) NoiseIndices(ddimSteps, maxLevel int) ([]int, error) {
	if ddimSteps < 1 {
		return nil, &InvalidScheduleError{Param: "ddim steps", Reason: fmt.Sprintf("must be at least 1, got %d", ddimSteps)}
	}
	if maxLevel < 1 || maxLevel > s.steps {
		return nil, &InvalidScheduleError{Param: "max noise level", Reason: fmt.Sprintf("must be in [1, %d], got %d", s.steps, maxLevel)}
	}

	rng := make([]float64, ddimSteps+1)
	floats.Span(rng, -1, float64(maxLevel-1))

	indices := make([]int, len(rng))
	for i, v := range rng {
		indices[i] = int(math.Round(v))
	}
	return indices, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
