package diffusion

import (
	"fmt"
	"math"

	"github.com/mirage-ml/mirage/internal/action"
	"github.com/mirage-ml/mirage/internal/nn"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// DefaultFrequencyDim is the sinusoidal feature width used by the timestep
// embedder when the model config leaves it unset.
const DefaultFrequencyDim = 256

// TimestepEmbedder maps per-frame noise levels to conditioning vectors.
//
// Levels are first expanded into log-spaced sinusoidal features (cosine half
// followed by sine half) and then pushed through a two-layer MLP. Noise level
// -1 marks a clean frame and is embedded like any other scalar position.
type TimestepEmbedder[B tensor.Backend] struct {
	FC1 *nn.Linear[B]
	Act *nn.SiLU[B]
	FC2 *nn.Linear[B]

	FreqDim   int
	MaxPeriod float64

	backend B
}

// NewTimestepEmbedder creates a timestep embedder producing vectors of the
// given hidden width. A non-positive freqDim selects DefaultFrequencyDim.
func NewTimestepEmbedder[B tensor.Backend](hidden, freqDim int, backend B) *TimestepEmbedder[B] {
	if hidden <= 0 {
		panic(fmt.Sprintf("timestep embedder: hidden size must be positive, got %d", hidden))
	}
	if freqDim <= 0 {
		freqDim = DefaultFrequencyDim
	}

	return &TimestepEmbedder[B]{
		FC1:       nn.NewLinear[B](freqDim, hidden, backend),
		Act:       nn.NewSiLU[B](),
		FC2:       nn.NewLinear[B](hidden, hidden, backend),
		FreqDim:   freqDim,
		MaxPeriod: 10000,
		backend:   backend,
	}
}

// Forward embeds a [batch, frames] int32 grid of noise levels into
// [batch, frames, hidden] conditioning vectors.
func (e *TimestepEmbedder[B]) Forward(levels *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	shape := levels.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("timestep embedder: levels must be 2D [batch, frames], got shape %v", shape))
	}
	batch, frames := shape[0], shape[1]

	features := timestepFeatures(levels.Data(), e.FreqDim, e.MaxPeriod)
	t, err := tensor.FromSlice[float32, B](features, tensor.Shape{batch, frames, e.FreqDim}, e.backend)
	if err != nil {
		panic(fmt.Sprintf("timestep embedder: %v", err))
	}

	return e.FC2.Forward(e.Act.Forward(e.FC1.Forward(t)))
}

// Parameters returns the MLP weights.
func (e *TimestepEmbedder[B]) Parameters() []*nn.Parameter[B] {
	params := e.FC1.Parameters()
	return append(params, e.FC2.Parameters()...)
}

// timestepFeatures expands scalar noise levels into log-spaced sinusoidal
// features, the cosine half first. An odd freqDim leaves the final slot
// at zero.
func timestepFeatures(levels []int32, freqDim int, maxPeriod float64) []float32 {
	half := freqDim / 2
	freqs := make([]float64, half)
	for i := range freqs {
		freqs[i] = math.Exp(-math.Log(maxPeriod) * float64(i) / float64(half))
	}

	features := make([]float32, len(levels)*freqDim)
	for n, level := range levels {
		base := n * freqDim
		for i, f := range freqs {
			arg := float64(level) * f
			features[base+i] = float32(math.Cos(arg))
			features[base+half+i] = float32(math.Sin(arg))
		}
	}
	return features
}

// ActionEmbedder maps per-frame control inputs to conditioning vectors.
//
// Each categorical group owns a lookup table; the per-group embeddings and
// the raw continuous channels are concatenated and projected to the model
// width. The resulting vectors are summed with the timestep embedding.
type ActionEmbedder[B tensor.Backend] struct {
	Groups []*nn.Embedding[B]
	Proj   *nn.Linear[B]

	space    action.Space
	embedDim int
	backend  B
}

// NewActionEmbedder creates an action embedder for the given control space.
//
// embedDim is the per-group table width and hidden the output width. The
// space must describe at least one categorical group or continuous channel.
func NewActionEmbedder[B tensor.Backend](space action.Space, embedDim, hidden int, backend B) (*ActionEmbedder[B], error) {
	if err := space.Check(); err != nil {
		return nil, fmt.Errorf("action embedder: %w", err)
	}
	if len(space.Groups) > 0 && embedDim <= 0 {
		return nil, fmt.Errorf("action embedder: embed dim must be positive, got %d", embedDim)
	}
	if hidden <= 0 {
		return nil, fmt.Errorf("action embedder: hidden size must be positive, got %d", hidden)
	}

	width := len(space.Groups)*embedDim + space.ContinuousDims
	if width == 0 {
		return nil, fmt.Errorf("action embedder: space has no categorical groups or continuous channels")
	}

	groups := make([]*nn.Embedding[B], len(space.Groups))
	for g, grp := range space.Groups {
		groups[g] = nn.NewEmbedding[B](grp.Size, embedDim, backend)
	}

	return &ActionEmbedder[B]{
		Groups:   groups,
		Proj:     nn.NewLinear[B](width, hidden, backend),
		space:    space,
		embedDim: embedDim,
		backend:  backend,
	}, nil
}

// Space returns the control space this embedder was built for.
func (e *ActionEmbedder[B]) Space() action.Space {
	return e.space
}

// Forward embeds encoded control inputs into [batch, frames, hidden].
//
// indices is [batch, frames, groups] int32 and must be non-nil when the
// space has categorical groups; continuous is [batch, frames, dims] float32
// and must be non-nil when the space has continuous channels. Arguments for
// absent axes are ignored.
func (e *ActionEmbedder[B]) Forward(indices *tensor.Tensor[int32, B], continuous *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	batch, frames := -1, -1

	if len(e.Groups) > 0 {
		if indices == nil {
			panic("action embedder: space has categorical groups but indices is nil")
		}
		shape := indices.Shape()
		if len(shape) != 3 {
			panic(fmt.Sprintf("action embedder: indices must be 3D [batch, frames, groups], got shape %v", shape))
		}
		if shape[2] != len(e.Groups) {
			panic(fmt.Sprintf("action embedder: expected %d groups, got %d", len(e.Groups), shape[2]))
		}
		batch, frames = shape[0], shape[1]
	}

	if e.space.ContinuousDims > 0 {
		if continuous == nil {
			panic("action embedder: space has continuous channels but continuous is nil")
		}
		shape := continuous.Shape()
		if len(shape) != 3 {
			panic(fmt.Sprintf("action embedder: continuous must be 3D [batch, frames, dims], got shape %v", shape))
		}
		if shape[2] != e.space.ContinuousDims {
			panic(fmt.Sprintf("action embedder: expected %d continuous dims, got %d", e.space.ContinuousDims, shape[2]))
		}
		if batch >= 0 && (shape[0] != batch || shape[1] != frames) {
			panic(fmt.Sprintf("action embedder: continuous batch/frames %dx%d do not match indices %dx%d",
				shape[0], shape[1], batch, frames))
		}
	}

	parts := make([]*tensor.Tensor[float32, B], 0, len(e.Groups)+1)
	for g, table := range e.Groups {
		col := indices.Narrow(2, g, 1).Squeeze(2)
		parts = append(parts, table.Forward(col))
	}
	if e.space.ContinuousDims > 0 {
		parts = append(parts, continuous)
	}

	return e.Proj.Forward(tensor.Cat(parts, 2))
}

// Parameters returns the group tables followed by the projection weights.
func (e *ActionEmbedder[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, g := range e.Groups {
		params = append(params, g.Parameters()...)
	}
	return append(params, e.Proj.Parameters()...)
}
