package diffusion

import (
	"math/rand"
	"testing"

	"github.com/mirage-ml/mirage/internal/backend/cpu"
	"github.com/mirage-ml/mirage/internal/nn"
	"github.com/mirage-ml/mirage/internal/tensor"
)

func testBlock(t *testing.T, backend *cpu.CPUBackend) *Block[*cpu.CPUBackend] {
	t.Helper()
	return NewBlock[*cpu.CPUBackend](BlockConfig{
		Hidden:    4,
		Heads:     2,
		MLPHidden: 8,
		GridH:     1,
		GridW:     2,
	}, backend)
}

func randomTensor(t *testing.T, backend *cpu.CPUBackend, shape ...int) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	data := make([]float32, tensor.Shape(shape).NumElements())
	rng := rand.New(rand.NewSource(7))
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	out, err := tensor.FromSlice(data, shape, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return out
}

// fillLinear overwrites every weight of a modulation projection with a
// constant, activating a branch that zero-initialization gates off.
func fillLinear(l *nn.Linear[*cpu.CPUBackend], v float32) {
	for _, p := range l.Parameters() {
		data := p.Tensor().Data()
		for i := range data {
			data[i] = v
		}
	}
}

func TestBlockFreshIsIdentity(t *testing.T) {
	backend := cpu.New()
	blk := testBlock(t, backend)

	x := randomTensor(t, backend, 1, 3, 2, 4)
	cond := randomTensor(t, backend, 1, 3, 4)
	before := append([]float32(nil), x.Data()...)

	out := blk.Forward(x, cond)

	// Zeroed modulation projections gate every branch off, so the block
	// passes its input through unchanged.
	for i, v := range out.Data() {
		if v != before[i] {
			t.Fatalf("output[%d] = %v, want %v (fresh block must be identity)", i, v, before[i])
		}
	}
	for i, v := range x.Data() {
		if v != before[i] {
			t.Fatalf("x[%d] mutated to %v", i, v)
		}
	}
}

func TestBlockModulationChangesOutput(t *testing.T) {
	backend := cpu.New()
	blk := testBlock(t, backend)

	fillLinear(blk.SpatialAdaLN, 0.05)

	x := randomTensor(t, backend, 1, 2, 2, 4)
	before := append([]float32(nil), x.Data()...)
	cond := randomTensor(t, backend, 1, 2, 4)

	out := blk.Forward(x, cond)
	if !out.Shape().Equal(tensor.Shape{1, 2, 2, 4}) {
		t.Fatalf("output shape = %v, want [1 2 2 4]", out.Shape())
	}
	if sliceEqual(out.Data(), before, 1e-9) {
		t.Error("active modulation left the input unchanged")
	}
}

func TestBlockConditioningMatters(t *testing.T) {
	backend := cpu.New()
	blk := testBlock(t, backend)

	// A non-zero projection weight makes the modulation depend on cond.
	wData := blk.SpatialAdaLN.Weight().Tensor().Data()
	for i := range wData {
		wData[i] = 0.01
	}

	x := randomTensor(t, backend, 1, 2, 2, 4)

	condA, _ := tensor.FromSlice(make([]float32, 8), tensor.Shape{1, 2, 4}, backend)
	condBData := make([]float32, 8)
	for i := range condBData {
		condBData[i] = 1
	}
	condB, _ := tensor.FromSlice(condBData, tensor.Shape{1, 2, 4}, backend)

	outA := blk.Forward(x, condA)
	outB := blk.Forward(x, condB)

	if sliceEqual(outA.Data(), outB.Data(), 1e-9) {
		t.Error("different conditioning produced identical outputs")
	}
}

func TestBlockCausalFrameIsolation(t *testing.T) {
	backend := cpu.New()
	blk := testBlock(t, backend)

	// Activate every unit so all four branches contribute.
	fillLinear(blk.SpatialAdaLN, 0.03)
	fillLinear(blk.TemporalAdaLN, 0.03)

	x := randomTensor(t, backend, 1, 3, 2, 4)
	cond := randomTensor(t, backend, 1, 3, 4)
	base := blk.Forward(x, cond)

	// Perturb only the last frame.
	bumped := append([]float32(nil), x.Data()...)
	frameSize := 2 * 4
	for i := 2 * frameSize; i < 3*frameSize; i++ {
		bumped[i] += 10
	}
	xBumped, _ := tensor.FromSlice(bumped, tensor.Shape{1, 3, 2, 4}, backend)
	out := blk.Forward(xBumped, cond)

	// Frames 0 and 1 never see frame 2: spatial attention works per frame
	// and temporal attention is causal.
	for i := 0; i < 2*frameSize; i++ {
		if out.Data()[i] != base.Data()[i] {
			t.Fatalf("past frame output[%d] changed: %v != %v", i, out.Data()[i], base.Data()[i])
		}
	}
	// The perturbed frame itself must change.
	changed := false
	for i := 2 * frameSize; i < 3*frameSize; i++ {
		if out.Data()[i] != base.Data()[i] {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("perturbed frame produced identical output")
	}
}

func TestNewBlockPanics(t *testing.T) {
	backend := cpu.New()

	t.Run("ZeroMLPHidden", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("NewBlock with zero MLP width did not panic")
			}
		}()
		NewBlock[*cpu.CPUBackend](BlockConfig{Hidden: 4, Heads: 2, MLPHidden: 0, GridH: 1, GridW: 2}, backend)
	})

	t.Run("IndivisibleHeads", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("NewBlock with indivisible heads did not panic")
			}
		}()
		NewBlock[*cpu.CPUBackend](BlockConfig{Hidden: 4, Heads: 3, MLPHidden: 8, GridH: 1, GridW: 2}, backend)
	})
}
