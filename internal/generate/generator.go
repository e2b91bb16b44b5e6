// Package generate drives autoregressive video synthesis. A generator
// extends a latent prompt one frame at a time: each new frame starts as
// clipped gaussian noise and is denoised through a DDIM ladder while the
// trailing context window is re-noised to a capped level for stability.
package generate

import (
	"context"
	"fmt"
	"math"

	"github.com/emirpasic/gods/v2/queues/circularbuffer"

	"github.com/mirage-ml/mirage/internal/diffusion"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Denoiser predicts the velocity term for a window of noisy frames at the
// given per-frame noise levels. The action tensors may be nil for models
// without the corresponding conditioning.
type Denoiser[B tensor.Backend] interface {
	Forward(frames *tensor.Tensor[float32, B], noiseLevels *tensor.Tensor[int32, B], actionIdx *tensor.Tensor[int32, B], actionCont *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error)
}

// VideoResult collects the frames of one generation. Frames holds a
// [batch, channels, height, width] tensor per output frame, prompt frames
// included. Partial marks a sequence cut short by cancellation or a step
// failure; the frames present are still valid.
type VideoResult[B tensor.Backend] struct {
	Frames  []*tensor.Tensor[float32, B]
	Partial bool
}

// VideoGenerator runs the sampling loop against a denoising model.
type VideoGenerator[B tensor.Backend] struct {
	model    Denoiser[B]
	schedule *diffusion.Schedule
	backend  B
	cfg      Config
	ladder   []int // DDIM noise levels, ladder[0] = -1
	noise    *noiseSource
}

// NewVideoGenerator validates cfg against the schedule and builds a
// generator.
func NewVideoGenerator[B tensor.Backend](model Denoiser[B], schedule *diffusion.Schedule, backend B, cfg Config) (*VideoGenerator[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ladder, err := schedule.NoiseIndices(cfg.DDIMNoiseSteps, cfg.MaxNoiseLevel)
	if err != nil {
		return nil, err
	}
	return &VideoGenerator[B]{
		model:    model,
		schedule: schedule,
		backend:  backend,
		cfg:      cfg,
		ladder:   ladder,
		noise:    newNoiseSource(cfg.Seed, cfg.NoiseAbsMax),
	}, nil
}

// Generate runs the sampling loop to totalFrames output frames and
// collects them. On error the result carries the frames finished before
// the failure, with Partial set.
func (g *VideoGenerator[B]) Generate(ctx context.Context, prompt *tensor.Tensor[float32, B], actionIdx *tensor.Tensor[int32, B], actionCont *tensor.Tensor[float32, B], totalFrames int) (*VideoResult[B], error) {
	res := &VideoResult[B]{}
	err := g.GenerateStream(ctx, prompt, actionIdx, actionCont, totalFrames, func(_ int, frame *tensor.Tensor[float32, B]) bool {
		res.Frames = append(res.Frames, frame)
		return true
	})
	if err != nil {
		res.Partial = true
	}
	return res, err
}

// GenerateStream runs the sampling loop, handing each finalized frame to
// yield as a [batch, channels, height, width] tensor the receiver owns.
// The prompt's leading frames are yielded first, then generated frames,
// up to totalFrames in all. Returning false from yield stops generation
// cleanly. On cancellation or a step failure the frames already yielded
// form the partial result; a frame mid-denoise is dropped, never emitted.
func (g *VideoGenerator[B]) GenerateStream(ctx context.Context, prompt *tensor.Tensor[float32, B], actionIdx *tensor.Tensor[int32, B], actionCont *tensor.Tensor[float32, B], totalFrames int, yield func(index int, frame *tensor.Tensor[float32, B]) bool) error {
	shape := prompt.Shape()
	if len(shape) != 5 {
		return &diffusion.ShapeMismatchError{
			Component: "sampler prompt",
			Got:       shape,
			Details:   "want rank 5 [batch, frames, channels, height, width]",
		}
	}
	if shape[1] < g.cfg.NPromptFrames {
		return &diffusion.ShapeMismatchError{
			Component: "sampler prompt",
			Got:       shape,
			Details:   fmt.Sprintf("prompt holds %d frames, config needs %d", shape[1], g.cfg.NPromptFrames),
		}
	}
	if totalFrames < g.cfg.NPromptFrames {
		return fmt.Errorf("sampler: total frames %d below the %d prompt frames", totalFrames, g.cfg.NPromptFrames)
	}
	if actionIdx != nil {
		if err := checkActionExtent(actionIdx.Shape(), "action indices", shape[0], totalFrames); err != nil {
			return err
		}
	}
	if actionCont != nil {
		if err := checkActionExtent(actionCont.Shape(), "action continuous", shape[0], totalFrames); err != nil {
			return err
		}
	}

	ring := circularbuffer.New[*tensor.Tensor[float32, B]](g.cfg.MaxFrames)
	defer func() {
		for !ring.Empty() {
			if f, ok := ring.Dequeue(); ok {
				f.Release()
			}
		}
	}()

	emitted := 0
	for i := 0; i < g.cfg.NPromptFrames; i++ {
		frame := prompt.Narrow(1, i, 1)
		g.pushFrame(ring, frame)
		if !yield(emitted, frame.Squeeze(1)) {
			return nil
		}
		emitted++
	}

	frameShape := tensor.Shape{shape[0], 1, shape[2], shape[3], shape[4]}
	for i := g.cfg.NPromptFrames; i < totalFrames; i++ {
		start, err := g.noiseTensor(frameShape)
		if err != nil {
			return err
		}
		final, err := g.denoiseFrame(ctx, ring, start, actionIdx, actionCont, i)
		if err != nil {
			return err
		}
		g.pushFrame(ring, final)
		if !yield(emitted, final.Squeeze(1)) {
			return nil
		}
		emitted++
	}
	return nil
}

// denoiseFrame walks one frame down the DDIM ladder. It owns current and
// either returns the finalized frame or releases it and reports the
// failure. Context frames are re-noised with fresh draws every step; the
// ring entries themselves are never written to.
func (g *VideoGenerator[B]) denoiseFrame(ctx context.Context, ring *circularbuffer.Queue[*tensor.Tensor[float32, B]], current *tensor.Tensor[float32, B], actionIdx *tensor.Tensor[int32, B], actionCont *tensor.Tensor[float32, B], frameIndex int) (*tensor.Tensor[float32, B], error) {
	for idx := g.cfg.DDIMNoiseSteps; idx >= 1; idx-- {
		select {
		case <-ctx.Done():
			current.Release()
			return nil, ctx.Err()
		default:
		}

		ctxLevel := g.ladder[min(idx, g.cfg.CtxMaxNoiseIdx)]
		level := g.ladder[idx]
		nextLevel := g.ladder[idx-1]
		if nextLevel < 0 {
			nextLevel = level
		}

		ctxFrames := g.contextWindow(ring)
		window := len(ctxFrames) + 1
		if g.cfg.OnStep != nil {
			g.cfg.OnStep(StepInfo{FrameIndex: frameIndex, NoiseIndex: idx, WindowLen: window})
		}

		sa := float32(math.Sqrt(g.schedule.AlphaCumprod(ctxLevel)))
		sb := float32(math.Sqrt(1 - g.schedule.AlphaCumprod(ctxLevel)))
		parts := make([]*tensor.Tensor[float32, B], 0, window)
		for _, c := range ctxFrames {
			noise, err := g.noiseTensor(c.Shape())
			if err != nil {
				releaseFrames(parts)
				current.Release()
				return nil, err
			}
			renoised := c.MulScalar(sa).Add(noise.MulScalar(sb))
			noise.Release()
			parts = append(parts, renoised)
		}
		parts = append(parts, current)
		windowT := tensor.Cat(parts, 1)
		releaseFrames(parts[:len(parts)-1])

		batch := current.Shape()[0]
		levels := make([]int32, batch*window)
		for b := 0; b < batch; b++ {
			row := levels[b*window : (b+1)*window]
			for j := 0; j < window-1; j++ {
				row[j] = int32(ctxLevel)
			}
			row[window-1] = int32(level)
		}
		levelsT, err := tensor.FromSlice(levels, tensor.Shape{batch, window}, g.backend)
		if err != nil {
			windowT.Release()
			current.Release()
			return nil, &diffusion.ResourceExhaustionError{Resource: "noise levels", Err: err}
		}

		var actIdxWin *tensor.Tensor[int32, B]
		if actionIdx != nil {
			actIdxWin = actionIdx.Narrow(1, frameIndex+1-window, window)
		}
		var actContWin *tensor.Tensor[float32, B]
		if actionCont != nil {
			actContWin = actionCont.Narrow(1, frameIndex+1-window, window)
		}

		v, err := g.model.Forward(windowT, levelsT, actIdxWin, actContWin)
		windowT.Release()
		levelsT.Release()
		if actIdxWin != nil {
			actIdxWin.Release()
		}
		if actContWin != nil {
			actContWin.Release()
		}
		if err != nil {
			current.Release()
			return nil, fmt.Errorf("sampler: model step failed: %w", err)
		}

		vLast := v.Narrow(1, window-1, 1)
		v.Release()

		next, err := g.ddimStep(current, vLast, level, nextLevel, idx == 1)
		vLast.Release()
		current.Release()
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// ddimStep recovers the clean and noise estimates from the velocity
// prediction at level and recombines them at nextLevel. The final step
// pins the next alpha to 1, which leaves the clean estimate itself.
func (g *VideoGenerator[B]) ddimStep(current, velocity *tensor.Tensor[float32, B], level, nextLevel int, final bool) (*tensor.Tensor[float32, B], error) {
	ac := g.schedule.AlphaCumprod(level)
	sa := float32(math.Sqrt(ac))
	sb := float32(math.Sqrt(1 - ac))
	xStart := current.MulScalar(sa).Sub(velocity.MulScalar(sb))

	inv := 1 / ac
	xNoise := current.MulScalar(float32(math.Sqrt(inv))).Sub(xStart).DivScalar(float32(math.Sqrt(inv - 1)))

	alphaNext := g.schedule.AlphaCumprod(nextLevel)
	if final {
		alphaNext = 1
	}
	pred := xStart.MulScalar(float32(math.Sqrt(alphaNext))).Add(xNoise.MulScalar(float32(math.Sqrt(1 - alphaNext))))
	xStart.Release()
	xNoise.Release()

	for _, f := range pred.Data() {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			pred.Release()
			return nil, &diffusion.NumericalInstabilityError{
				Stage:   "frame estimate",
				Details: fmt.Sprintf("non-finite value at noise level %d", level),
			}
		}
	}
	return pred, nil
}

// contextWindow returns the trailing finalized frames that fit the model
// window alongside the frame being denoised, oldest first.
func (g *VideoGenerator[B]) contextWindow(ring *circularbuffer.Queue[*tensor.Tensor[float32, B]]) []*tensor.Tensor[float32, B] {
	vals := ring.Values()
	if keep := g.cfg.MaxFrames - 1; len(vals) > keep {
		vals = vals[len(vals)-keep:]
	}
	return vals
}

// pushFrame appends a finalized frame, releasing the one evicted when the
// ring is at capacity.
func (g *VideoGenerator[B]) pushFrame(ring *circularbuffer.Queue[*tensor.Tensor[float32, B]], frame *tensor.Tensor[float32, B]) {
	if ring.Full() {
		if old, ok := ring.Dequeue(); ok {
			old.Release()
		}
	}
	ring.Enqueue(frame)
}

func (g *VideoGenerator[B]) noiseTensor(shape tensor.Shape) (*tensor.Tensor[float32, B], error) {
	t, err := tensor.FromSlice(g.noise.sample(shape.NumElements()), shape, g.backend)
	if err != nil {
		return nil, &diffusion.ResourceExhaustionError{Resource: "noise tensor", Err: err}
	}
	return t, nil
}

func checkActionExtent(s tensor.Shape, component string, batch, frames int) error {
	if len(s) != 3 || s[0] != batch || s[1] != frames {
		return &diffusion.ShapeMismatchError{
			Component: component,
			Got:       s,
			Details:   fmt.Sprintf("want [%d, %d, *] covering every output frame", batch, frames),
		}
	}
	return nil
}

func releaseFrames[B tensor.Backend](frames []*tensor.Tensor[float32, B]) {
	for _, f := range frames {
		f.Release()
	}
}
