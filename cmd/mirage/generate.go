package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mirage-ml/mirage/action"
	"github.com/mirage-ml/mirage/backend/cpu"
	"github.com/mirage-ml/mirage/diffusion"
	"github.com/mirage-ml/mirage/generate"
	"github.com/mirage-ml/mirage/internal/frameio"
	"github.com/mirage-ml/mirage/loader"
	"github.com/mirage-ml/mirage/tensor"
	"github.com/mirage-ml/mirage/vae"
)

type generateFlags struct {
	checkpoint string
	prompt     string
	actions    string
	outDir     string
	frames     int

	steps        int
	maxNoise     int
	noiseAbsMax  float64
	ctxNoiseIdx  int
	promptFrames int
	window       int
	seed         int64

	channels  int
	height    int
	width     int
	patch     int
	hidden    int
	depth     int
	heads     int
	actionDim int

	previewChannel int
	previewScale   int
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Extend a latent video prompt with new frames",
		Long: `Generate rolls out latent video frames from a prompt.

The prompt is a safetensors file holding a latent frame sequence of shape
[frames, channels, height, width] (a leading batch dimension of 1 is also
accepted). The actions file, when given, is a JSON array with one control
record per output frame. Each generated frame is written to the output
directory as a grayscale preview PNG, and the full latent sequence is
written as latents.safetensors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateHandler(cmd, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.checkpoint, "checkpoint", "c", "", "Model checkpoint (safetensors)")
	flags.StringVarP(&f.prompt, "prompt", "p", "", "Prompt latents (safetensors)")
	flags.StringVarP(&f.actions, "actions", "a", "", "Per-frame actions (JSON)")
	flags.StringVarP(&f.outDir, "out", "o", "out", "Output directory")
	flags.IntVarP(&f.frames, "frames", "n", 16, "Total frames to produce, prompt included")

	sampling := generate.DefaultConfig()
	flags.IntVar(&f.steps, "steps", sampling.DDIMNoiseSteps, "Denoising steps per frame")
	flags.IntVar(&f.maxNoise, "max-noise", sampling.MaxNoiseLevel, "Top noise level of the schedule")
	flags.Float64Var(&f.noiseAbsMax, "noise-abs-max", sampling.NoiseAbsMax, "Clamp bound for sampled noise")
	flags.IntVar(&f.ctxNoiseIdx, "ctx-noise-idx", sampling.CtxMaxNoiseIdx, "Max ladder index for re-noising context frames")
	flags.IntVar(&f.promptFrames, "prompt-frames", sampling.NPromptFrames, "Leading prompt frames to prime the context")
	flags.IntVar(&f.window, "window", sampling.MaxFrames, "Sliding context window length")
	flags.Int64Var(&f.seed, "seed", sampling.Seed, "Noise seed (-1 picks a random seed)")

	model := diffusion.DefaultConfig()
	flags.IntVar(&f.channels, "channels", model.InChannels, "Latent channels per frame")
	flags.IntVar(&f.height, "height", model.Height, "Latent frame height")
	flags.IntVar(&f.width, "width", model.Width, "Latent frame width")
	flags.IntVar(&f.patch, "patch", model.PatchSize, "Patch size")
	flags.IntVar(&f.hidden, "hidden", model.Hidden, "Token dimension")
	flags.IntVar(&f.depth, "depth", model.Depth, "Transformer blocks")
	flags.IntVar(&f.heads, "heads", model.Heads, "Attention heads")
	flags.IntVar(&f.actionDim, "action-dim", 128, "Per-group action embedding width")

	flags.IntVar(&f.previewChannel, "preview-channel", 0, "Latent channel rendered in preview PNGs")
	flags.IntVar(&f.previewScale, "preview-scale", 8, "Preview upscaling factor")

	for _, name := range []string{"checkpoint", "prompt"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	return cmd
}

func generateHandler(cmd *cobra.Command, f *generateFlags) error {
	backend := cpu.New()

	cfg := diffusion.DefaultConfig()
	cfg.InChannels = f.channels
	cfg.Height = f.height
	cfg.Width = f.width
	cfg.PatchSize = f.patch
	cfg.Hidden = f.hidden
	cfg.Depth = f.depth
	cfg.Heads = f.heads
	cfg.MaxFrames = f.window

	var (
		actIdx  *tensor.Tensor[int32, *cpu.Backend]
		actCont *tensor.Tensor[float32, *cpu.Backend]
	)
	if f.actions != "" {
		space := action.DefaultSpace()
		cfg.Space = &space
		cfg.ActionEmbedDim = f.actionDim

		acts, err := readActions(f.actions, space, f.frames)
		if err != nil {
			return err
		}
		actIdx, actCont, err = action.EncodeBatch(space, [][]action.Action{acts}, backend)
		if err != nil {
			return fmt.Errorf("encoding actions: %w", err)
		}
	}

	model, err := diffusion.New(cfg, backend)
	if err != nil {
		return err
	}

	slog.Info("loading checkpoint", "path", f.checkpoint)
	ckpt, err := loader.Open(f.checkpoint)
	if err != nil {
		return err
	}
	sd, err := ckpt.LoadStateDict()
	ckpt.Close()
	if err != nil {
		return err
	}
	if err := model.LoadStateDict(sd); err != nil {
		return err
	}

	schedule, err := diffusion.NewSigmoidSchedule(f.maxNoise,
		diffusion.DefaultSigmoidStart, diffusion.DefaultSigmoidEnd, diffusion.DefaultSigmoidTau)
	if err != nil {
		return err
	}

	prompt, err := loadLatents(f.prompt, backend)
	if err != nil {
		return err
	}
	scaled := vae.ScaleLatents(prompt)
	prompt.Release()

	sampling := generate.Config{
		DDIMNoiseSteps: f.steps,
		MaxNoiseLevel:  f.maxNoise,
		NoiseAbsMax:    f.noiseAbsMax,
		CtxMaxNoiseIdx: f.ctxNoiseIdx,
		NPromptFrames:  f.promptFrames,
		MaxFrames:      f.window,
		Seed:           f.seed,
		OnStep: func(s generate.StepInfo) {
			slog.Debug("denoise step", "frame", s.FrameIndex, "noise_idx", s.NoiseIndex, "window", s.WindowLen)
		},
	}

	gen, err := generate.NewVideoGenerator(model, schedule, backend, sampling)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return err
	}

	slog.Info("generating", "frames", f.frames, "steps", f.steps, "window", f.window)

	out := loader.NewStateDict()
	var cbErr error
	written := 0
	streamErr := gen.GenerateStream(cmd.Context(), scaled, actIdx, actCont, f.frames,
		func(i int, frame *tensor.Tensor[float32, *cpu.Backend]) bool {
			latent := vae.UnscaleLatents(frame)
			frame.Release()

			img, err := frameio.Gray(latent, f.previewChannel)
			if err != nil {
				cbErr = err
				return false
			}
			if f.previewScale > 1 {
				b := img.Bounds()
				img = frameio.Resize(img, b.Dx()*f.previewScale, b.Dy()*f.previewScale)
			}
			path := filepath.Join(f.outDir, fmt.Sprintf("frame_%04d.png", i))
			if err := frameio.WritePNG(path, img); err != nil {
				cbErr = err
				return false
			}

			out.Set(fmt.Sprintf("frames.%04d", i), latent.Raw())
			written++
			slog.Info("frame done", "index", i, "preview", path)
			return true
		})
	scaled.Release()

	if cbErr != nil {
		return cbErr
	}
	if written > 0 {
		path := filepath.Join(f.outDir, "latents.safetensors")
		meta := map[string]string{"format": "mirage.latents", "frames": fmt.Sprint(written)}
		if err := loader.Write(path, out, meta); err != nil {
			return err
		}
		slog.Info("wrote latents", "path", path, "frames", written)
	}
	if streamErr != nil {
		slog.Warn("generation stopped early", "frames_done", written, "err", streamErr)
		return streamErr
	}
	return nil
}

// readActions parses a JSON array of per-frame control records and checks
// it against the space and the requested frame count.
func readActions(path string, space action.Space, frames int) ([]action.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var acts []action.Action
	if err := json.Unmarshal(data, &acts); err != nil {
		return nil, fmt.Errorf("actions file %s: %w", path, err)
	}
	if len(acts) != frames {
		return nil, fmt.Errorf("actions file %s: %d records for %d frames", path, len(acts), frames)
	}
	for i, a := range acts {
		if err := space.Validate(a); err != nil {
			return nil, fmt.Errorf("actions file %s: record %d: %w", path, i, err)
		}
	}
	return acts, nil
}

// loadLatents reads a prompt latent sequence from a safetensors file. The
// tensor named "frames" is used when present, otherwise the file's first
// tensor. A rank-4 [frames, channels, height, width] sequence gains a
// batch dimension of 1.
func loadLatents(path string, backend *cpu.Backend) (*tensor.Tensor[float32, *cpu.Backend], error) {
	file, err := loader.Open(path)
	if err != nil {
		return nil, err
	}
	sd, err := file.LoadStateDict()
	file.Close()
	if err != nil {
		return nil, err
	}
	if sd.Len() == 0 {
		return nil, fmt.Errorf("prompt file %s holds no tensors", path)
	}

	raw, ok := sd.Get("frames")
	if !ok {
		for _, t := range sd.All() {
			raw = t
			break
		}
	}

	if raw.DType() != tensor.Float32 {
		return nil, fmt.Errorf("prompt file %s: latents must be float32, got %v", path, raw.DType())
	}

	t := tensor.New[float32](raw, backend)
	switch len(t.Shape()) {
	case 4:
		seq := t.Unsqueeze(0)
		t.Release()
		return seq, nil
	case 5:
		return t, nil
	}
	return nil, fmt.Errorf("prompt file %s: latents must be rank 4 or 5, got shape %v", path, t.Shape())
}
