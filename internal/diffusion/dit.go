// Package diffusion implements the action-conditioned video transformer and
// its denoising math: the spatio-temporal DiT blocks, the per-frame
// conditioning embedders, and the sigmoid noise schedule with the forward
// (noising) process the training loss is defined on.
package diffusion

import (
	"fmt"
	"slices"

	"github.com/mirage-ml/mirage/internal/action"
	"github.com/mirage-ml/mirage/internal/loader"
	"github.com/mirage-ml/mirage/internal/nn"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// DefaultMLPRatio is the feed-forward expansion factor used when the config
// leaves MLPRatio unset.
const DefaultMLPRatio = 4

// Config sizes a DiT model. All frame dimensions are in latent space.
type Config struct {
	InChannels int // latent channels per frame
	Hidden     int // token dimension
	PatchSize  int // square patch edge, must divide Height and Width
	Depth      int // transformer blocks
	Heads      int // attention heads, must divide Hidden
	MLPRatio   int // feed-forward expansion factor, 0 selects DefaultMLPRatio
	Height     int // latent frame height
	Width      int // latent frame width
	MaxFrames  int // longest frame window a forward pass accepts
	FreqDim    int // timestep feature width, 0 selects DefaultFrequencyDim

	// Space enables action conditioning when non-nil. ActionEmbedDim is the
	// per-group table width and must be positive when the space has
	// categorical groups.
	Space          *action.Space
	ActionEmbedDim int
}

// Validate checks the config for a constructible model.
func (c Config) Validate() error {
	switch {
	case c.InChannels <= 0:
		return fmt.Errorf("model config: channels must be positive, got %d", c.InChannels)
	case c.Hidden <= 0:
		return fmt.Errorf("model config: hidden size must be positive, got %d", c.Hidden)
	case c.PatchSize <= 0:
		return fmt.Errorf("model config: patch size must be positive, got %d", c.PatchSize)
	case c.Depth <= 0:
		return fmt.Errorf("model config: depth must be positive, got %d", c.Depth)
	case c.Heads <= 0:
		return fmt.Errorf("model config: heads must be positive, got %d", c.Heads)
	case c.Hidden%c.Heads != 0:
		return fmt.Errorf("model config: hidden size %d not divisible by %d heads", c.Hidden, c.Heads)
	case c.MLPRatio < 0:
		return fmt.Errorf("model config: MLP ratio must not be negative, got %d", c.MLPRatio)
	case c.Height <= 0 || c.Width <= 0:
		return fmt.Errorf("model config: frame size must be positive, got %dx%d", c.Height, c.Width)
	case c.Height%c.PatchSize != 0 || c.Width%c.PatchSize != 0:
		return fmt.Errorf("model config: frame %dx%d not divisible by patch size %d", c.Height, c.Width, c.PatchSize)
	case c.MaxFrames <= 0:
		return fmt.Errorf("model config: max frames must be positive, got %d", c.MaxFrames)
	}

	if c.Space != nil {
		if err := c.Space.Check(); err != nil {
			return fmt.Errorf("model config: %w", err)
		}
		if len(c.Space.Groups) > 0 && c.ActionEmbedDim <= 0 {
			return fmt.Errorf("model config: action embed dim must be positive, got %d", c.ActionEmbedDim)
		}
	}

	return nil
}

// DefaultConfig returns the sizing of the reference 500M checkpoint:
// 16-channel 18x32 latent frames, patch 2, a 16-block stack of width 1024
// with 16 heads, and a 32-frame window. Action conditioning is off; set
// Space and ActionEmbedDim to enable it.
func DefaultConfig() Config {
	return Config{
		InChannels: 16,
		Hidden:     1024,
		PatchSize:  2,
		Depth:      16,
		Heads:      16,
		Height:     18,
		Width:      32,
		MaxFrames:  32,
	}
}

// DiT is the spatio-temporal diffusion transformer.
//
// A forward pass patch-embeds every latent frame, builds one conditioning
// vector per frame from its noise level (plus the frame's action when the
// model is conditioned), runs the block stack, and projects back to latent
// frames through a final modulated layer. Temporal attention is causal, so
// a frame's output depends only on itself and earlier frames.
type DiT[B tensor.Backend] struct {
	Patch       *nn.PatchEmbed[B]
	TimestepEmb *TimestepEmbedder[B]
	ActionEmb   *ActionEmbedder[B] // nil for an unconditioned model
	Blocks      []*Block[B]
	FinalNorm   *nn.LayerNorm[B]
	FinalAdaLN  *nn.Linear[B] // hidden -> 2*hidden (shift, scale), zero-initialized
	FinalProj   *nn.Linear[B] // hidden -> patch*patch*channels, zero-initialized
	act         *nn.SiLU[B]

	cfg          Config
	gridH, gridW int
	names        []string
	params       map[string]*nn.Parameter[B]
	backend      B
}

// New builds a DiT from the config with freshly initialized weights. The
// modulation and output projections start at zero, so an unloaded model
// predicts zeros.
func New[B tensor.Backend](cfg Config, backend B) (*DiT[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MLPRatio == 0 {
		cfg.MLPRatio = DefaultMLPRatio
	}

	m := &DiT[B]{
		cfg:     cfg,
		gridH:   cfg.Height / cfg.PatchSize,
		gridW:   cfg.Width / cfg.PatchSize,
		params:  make(map[string]*nn.Parameter[B]),
		backend: backend,
	}

	m.Patch = nn.NewPatchEmbed[B](cfg.InChannels, cfg.Hidden, cfg.PatchSize, false, backend)
	m.TimestepEmb = NewTimestepEmbedder[B](cfg.Hidden, cfg.FreqDim, backend)

	if cfg.Space != nil {
		emb, err := NewActionEmbedder[B](*cfg.Space, cfg.ActionEmbedDim, cfg.Hidden, backend)
		if err != nil {
			return nil, fmt.Errorf("model config: %w", err)
		}
		m.ActionEmb = emb
	}

	blockCfg := BlockConfig{
		Hidden:    cfg.Hidden,
		Heads:     cfg.Heads,
		MLPHidden: cfg.MLPRatio * cfg.Hidden,
		GridH:     m.gridH,
		GridW:     m.gridW,
	}
	m.Blocks = make([]*Block[B], cfg.Depth)
	for i := range m.Blocks {
		m.Blocks[i] = NewBlock[B](blockCfg, backend)
	}

	m.FinalNorm = nn.NewLayerNormNoAffine[B](cfg.Hidden, layerNormEpsilon, backend)
	m.FinalAdaLN = nn.NewLinear[B](cfg.Hidden, 2*cfg.Hidden, backend)
	m.FinalAdaLN.Zero()
	m.FinalProj = nn.NewLinear[B](cfg.Hidden, cfg.PatchSize*cfg.PatchSize*cfg.InChannels, backend)
	m.FinalProj.Zero()
	m.act = nn.NewSiLU[B]()

	m.registerParameters()
	return m, nil
}

// Config returns the model configuration.
func (m *DiT[B]) Config() Config {
	return m.cfg
}

// Forward predicts v for every frame of the window.
//
// Shapes:
//   - frames: [batch, time, channels, height, width] latents
//   - noiseLevels: [batch, time] int32, -1 for clean frames
//   - actionIdx: [batch, time, groups] int32, nil for an unconditioned model
//   - actionCont: [batch, time, dims] float32, nil when the space has no
//     continuous channels
//
// Returns the predicted v tensor with the same shape as frames. Input
// tensors whose extents disagree with the config or with each other fail
// with *ShapeMismatchError.
func (m *DiT[B]) Forward(frames *tensor.Tensor[float32, B], noiseLevels *tensor.Tensor[int32, B], actionIdx *tensor.Tensor[int32, B], actionCont *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	shape := frames.Shape()
	want := tensor.Shape{-1, -1, m.cfg.InChannels, m.cfg.Height, m.cfg.Width}
	if len(shape) != 5 || shape[2] != m.cfg.InChannels || shape[3] != m.cfg.Height || shape[4] != m.cfg.Width {
		return nil, &ShapeMismatchError{
			Component: "model input",
			Want:      want,
			Got:       shape,
			Details:   "frames must be [batch, time, channels, height, width] matching the config",
		}
	}
	batch, time := shape[0], shape[1]
	if time > m.cfg.MaxFrames {
		return nil, &ShapeMismatchError{
			Component: "model input",
			Want:      tensor.Shape{batch, m.cfg.MaxFrames, m.cfg.InChannels, m.cfg.Height, m.cfg.Width},
			Got:       shape,
			Details:   fmt.Sprintf("window of %d frames exceeds the model's %d-frame limit", time, m.cfg.MaxFrames),
		}
	}

	if ls := noiseLevels.Shape(); len(ls) != 2 || ls[0] != batch || ls[1] != time {
		return nil, &ShapeMismatchError{
			Component: "noise levels",
			Want:      tensor.Shape{batch, time},
			Got:       ls,
		}
	}

	if m.ActionEmb == nil {
		if actionIdx != nil || actionCont != nil {
			return nil, fmt.Errorf("model: action inputs supplied but the model has no action embedder")
		}
	} else if err := m.checkActionExtents(batch, time, actionIdx, actionCont); err != nil {
		return nil, err
	}

	// Every frame patch-embeds independently.
	flat := frames.Reshape(batch*time, m.cfg.InChannels, m.cfg.Height, m.cfg.Width)
	h := m.Patch.Forward(flat).Reshape(batch, time, m.gridH*m.gridW, m.cfg.Hidden)

	cond := m.TimestepEmb.Forward(noiseLevels)
	if m.ActionEmb != nil {
		cond = m.ActionEmb.Forward(actionIdx, actionCont).Add(cond)
	}

	for _, blk := range m.Blocks {
		h = blk.Forward(h, cond)
	}

	c := m.act.Forward(cond)
	parts := m.FinalAdaLN.Forward(c).Chunk(2, -1)
	h = modulate(m.FinalNorm.Forward(h), parts[0], parts[1])
	out := m.FinalProj.Forward(h)

	grid := out.Reshape(batch*time, m.gridH, m.gridW, m.cfg.PatchSize*m.cfg.PatchSize*m.cfg.InChannels)
	pixels := nn.Unpatchify(grid, m.cfg.PatchSize, m.cfg.InChannels)
	return pixels.Reshape(batch, time, m.cfg.InChannels, m.cfg.Height, m.cfg.Width), nil
}

// checkActionExtents validates the action tensors against the window before
// the embedder's internal panics could fire on them.
func (m *DiT[B]) checkActionExtents(batch, time int, actionIdx *tensor.Tensor[int32, B], actionCont *tensor.Tensor[float32, B]) error {
	space := m.ActionEmb.Space()

	if len(space.Groups) > 0 {
		if actionIdx == nil {
			return fmt.Errorf("model: action indices required for a conditioned model")
		}
		if s := actionIdx.Shape(); len(s) != 3 || s[0] != batch || s[1] != time || s[2] != len(space.Groups) {
			return &ShapeMismatchError{
				Component: "action indices",
				Want:      tensor.Shape{batch, time, len(space.Groups)},
				Got:       s,
				Details:   "one index per group for every frame of the window",
			}
		}
	}

	if space.ContinuousDims > 0 {
		if actionCont == nil {
			return fmt.Errorf("model: continuous action channels required for this action space")
		}
		if s := actionCont.Shape(); len(s) != 3 || s[0] != batch || s[1] != time || s[2] != space.ContinuousDims {
			return &ShapeMismatchError{
				Component: "action continuous",
				Want:      tensor.Shape{batch, time, space.ContinuousDims},
				Got:       s,
				Details:   "one vector per frame of the window",
			}
		}
	}

	return nil
}

// registerParameters assigns the state-dict name of every weight. Names are
// hierarchical and stable; LoadStateDict resolves by exact match.
func (m *DiT[B]) registerParameters() {
	m.register("patch_embed", m.Patch.Parameters()...)
	m.register("timestep_embedder.mlp1", m.TimestepEmb.FC1.Parameters()...)
	m.register("timestep_embedder.mlp2", m.TimestepEmb.FC2.Parameters()...)

	if m.ActionEmb != nil {
		for g, table := range m.ActionEmb.Groups {
			m.register(fmt.Sprintf("action_embedder.groups.%d", g), table.Parameters()...)
		}
		m.register("action_embedder.proj", m.ActionEmb.Proj.Parameters()...)
	}

	for i, blk := range m.Blocks {
		p := fmt.Sprintf("blocks.%d", i)
		m.register(p+".spatial_attn.wq", blk.SpatialAttn.WQ.Parameters()...)
		m.register(p+".spatial_attn.wk", blk.SpatialAttn.WK.Parameters()...)
		m.register(p+".spatial_attn.wv", blk.SpatialAttn.WV.Parameters()...)
		m.register(p+".spatial_attn.wo", blk.SpatialAttn.WO.Parameters()...)
		m.register(p+".spatial_mlp.fc1", blk.SpatialMLP.FC1.Parameters()...)
		m.register(p+".spatial_mlp.fc2", blk.SpatialMLP.FC2.Parameters()...)
		m.register(p+".spatial_adaln", blk.SpatialAdaLN.Parameters()...)
		m.register(p+".temporal_attn.wq", blk.TemporalAttn.WQ.Parameters()...)
		m.register(p+".temporal_attn.wk", blk.TemporalAttn.WK.Parameters()...)
		m.register(p+".temporal_attn.wv", blk.TemporalAttn.WV.Parameters()...)
		m.register(p+".temporal_attn.wo", blk.TemporalAttn.WO.Parameters()...)
		m.register(p+".temporal_mlp.fc1", blk.TemporalMLP.FC1.Parameters()...)
		m.register(p+".temporal_mlp.fc2", blk.TemporalMLP.FC2.Parameters()...)
		m.register(p+".temporal_adaln", blk.TemporalAdaLN.Parameters()...)
	}

	m.register("final.adaln", m.FinalAdaLN.Parameters()...)
	m.register("final.proj", m.FinalProj.Parameters()...)
}

func (m *DiT[B]) register(prefix string, params ...*nn.Parameter[B]) {
	for _, p := range params {
		name := prefix + "." + p.Name()
		if _, ok := m.params[name]; ok {
			panic(fmt.Sprintf("model: duplicate parameter %q", name))
		}
		m.names = append(m.names, name)
		m.params[name] = p
	}
}

// ParameterNames returns every parameter name in registration order.
func (m *DiT[B]) ParameterNames() []string {
	return slices.Clone(m.names)
}

// Parameter looks up a registered parameter by its state-dict name.
func (m *DiT[B]) Parameter(name string) (*nn.Parameter[B], bool) {
	p, ok := m.params[name]
	return p, ok
}

// StateDict exports the weights in registration order. The returned dict
// shares storage with the model.
func (m *DiT[B]) StateDict() *loader.StateDict {
	sd := loader.NewStateDict()
	for _, name := range m.names {
		sd.Set(name, m.params[name].Tensor().Raw())
	}
	return sd
}

// LoadStateDict assigns checkpoint weights to the model's parameters.
//
// Every entry must name a registered parameter with matching shape and
// float32 dtype, and every registered parameter must be present. Unknown
// names fail with ErrUnknownParameter, absent ones with
// ErrMissingParameter, and shape disagreements with *ShapeMismatchError;
// nothing is assigned silently.
func (m *DiT[B]) LoadStateDict(sd *loader.StateDict) error {
	loaded := 0
	for name, raw := range sd.All() {
		p, ok := m.params[name]
		if !ok {
			return fmt.Errorf("model: %w: %q", ErrUnknownParameter, name)
		}

		dst := p.Tensor()
		if got := raw.DType(); got != tensor.Float32 {
			return fmt.Errorf("model: parameter %q: dtype %s, want %s", name, got, tensor.Float32)
		}
		if !dst.Shape().Equal(raw.Shape()) {
			return &ShapeMismatchError{
				Component: fmt.Sprintf("parameter %q", name),
				Want:      dst.Shape(),
				Got:       raw.Shape(),
			}
		}

		if err := dst.Raw().CopyFrom(raw); err != nil {
			return fmt.Errorf("model: parameter %q: %w", name, err)
		}
		loaded++
	}

	if loaded != len(m.names) {
		for _, name := range m.names {
			if _, ok := sd.Get(name); !ok {
				return fmt.Errorf("model: %w: %q", ErrMissingParameter, name)
			}
		}
	}
	return nil
}
