package nn

import (
	"testing"

	"github.com/mirage-ml/mirage/internal/backend/cpu"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Compile-time checks that the single-input layers satisfy Module.
var (
	_ Module[*cpu.CPUBackend] = (*Linear[*cpu.CPUBackend])(nil)
	_ Module[*cpu.CPUBackend] = (*LayerNorm[*cpu.CPUBackend])(nil)
	_ Module[*cpu.CPUBackend] = (*MLP[*cpu.CPUBackend])(nil)
	_ Module[*cpu.CPUBackend] = (*SiLU[*cpu.CPUBackend])(nil)
	_ Module[*cpu.CPUBackend] = (*Sigmoid[*cpu.CPUBackend])(nil)
	_ Module[*cpu.CPUBackend] = (*GELUTanh[*cpu.CPUBackend])(nil)
	_ Module[*cpu.CPUBackend] = (*SpatialAttention[*cpu.CPUBackend])(nil)
	_ Module[*cpu.CPUBackend] = (*TemporalAttention[*cpu.CPUBackend])(nil)
	_ Module[*cpu.CPUBackend] = (*PatchEmbed[*cpu.CPUBackend])(nil)
)

// floatEqual checks approximate equality of two float32 values.
func floatEqual(a, b, epsilon float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

// sliceEqual checks approximate element-wise equality.
func sliceEqual(a, b []float32, epsilon float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floatEqual(a[i], b[i], epsilon) {
			return false
		}
	}
	return true
}

// setLinear overwrites a layer's weight (and bias when present) with the
// given row-major values.
func setLinear[B tensor.Backend](l *Linear[B], weight, bias []float32) {
	copy(l.Weight().Tensor().Data(), weight)
	if bias != nil {
		copy(l.Bias().Tensor().Data(), bias)
	}
}

func TestLinearForward2D(t *testing.T) {
	backend := cpu.New()

	l := NewLinear(2, 3, backend)
	// W = [[1,0],[0,1],[1,1]], b = [0.5, -0.5, 0]
	setLinear(l, []float32{1, 0, 0, 1, 1, 1}, []float32{0.5, -0.5, 0})

	input, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := l.Forward(input)

	if !output.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("output shape = %v, want [2 3]", output.Shape())
	}
	want := []float32{1.5, 1.5, 3, 3.5, 3.5, 7}
	if !sliceEqual(output.Data(), want, 1e-5) {
		t.Errorf("output = %v, want %v", output.Data(), want)
	}
}

func TestLinearForwardLeadingDims(t *testing.T) {
	backend := cpu.New()

	l := NewLinear(2, 3, backend)
	setLinear(l, []float32{1, 0, 0, 1, 1, 1}, []float32{0.5, -0.5, 0})

	// Same rows as the 2D test, nested one level deeper.
	input, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := l.Forward(input)

	if !output.Shape().Equal(tensor.Shape{1, 2, 3}) {
		t.Fatalf("output shape = %v, want [1 2 3]", output.Shape())
	}
	want := []float32{1.5, 1.5, 3, 3.5, 3.5, 7}
	if !sliceEqual(output.Data(), want, 1e-5) {
		t.Errorf("output = %v, want %v", output.Data(), want)
	}
}

func TestLinearNoBias(t *testing.T) {
	backend := cpu.New()

	l := NewLinearNoBias(2, 2, backend)
	setLinear(l, []float32{1, 0, 0, 1}, nil)

	if l.Bias() != nil {
		t.Fatal("NewLinearNoBias should not allocate a bias")
	}
	if len(l.Parameters()) != 1 {
		t.Fatalf("Parameters() = %d entries, want 1", len(l.Parameters()))
	}

	input, err := tensor.FromSlice([]float32{3, 4}, tensor.Shape{1, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	output := l.Forward(input)
	if !sliceEqual(output.Data(), []float32{3, 4}, 1e-6) {
		t.Errorf("identity weight output = %v, want [3 4]", output.Data())
	}
}

func TestLinearZero(t *testing.T) {
	backend := cpu.New()

	l := NewLinear(4, 2, backend)
	l.Zero()

	input := Randn[*cpu.CPUBackend](tensor.Shape{3, 4}, backend)
	output := l.Forward(input)

	for i, v := range output.Data() {
		if v != 0 {
			t.Fatalf("output[%d] = %f after Zero(), want 0", i, v)
		}
	}
}

func TestLinearInputUnchanged(t *testing.T) {
	backend := cpu.New()

	l := NewLinear(3, 3, backend)
	input, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	before := make([]float32, len(input.Data()))
	copy(before, input.Data())

	l.Forward(input)

	for i, v := range input.Data() {
		if v != before[i] {
			t.Fatalf("Forward mutated its input at %d: %f != %f", i, v, before[i])
		}
	}
}

func TestLinearPanics(t *testing.T) {
	backend := cpu.New()
	l := NewLinear(4, 2, backend)

	t.Run("1DInput", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for 1D input")
			}
		}()
		input, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4}, backend)
		l.Forward(input)
	})

	t.Run("FeatureMismatch", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for feature mismatch")
			}
		}()
		input, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{1, 3}, backend)
		l.Forward(input)
	})

	t.Run("NonPositiveFeatures", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for zero features")
			}
		}()
		NewLinear(0, 2, backend)
	})
}

func TestLinearParameters(t *testing.T) {
	backend := cpu.New()
	l := NewLinear(4, 2, backend)

	params := l.Parameters()
	if len(params) != 2 {
		t.Fatalf("Parameters() = %d entries, want 2", len(params))
	}
	if params[0].Name() != "weight" || params[1].Name() != "bias" {
		t.Errorf("parameter names = %q, %q, want weight, bias", params[0].Name(), params[1].Name())
	}
	if !params[0].Tensor().Shape().Equal(tensor.Shape{2, 4}) {
		t.Errorf("weight shape = %v, want [2 4]", params[0].Tensor().Shape())
	}
	if !params[1].Tensor().Shape().Equal(tensor.Shape{2}) {
		t.Errorf("bias shape = %v, want [2]", params[1].Tensor().Shape())
	}
	if l.InFeatures() != 4 || l.OutFeatures() != 2 {
		t.Errorf("feature accessors = %d, %d, want 4, 2", l.InFeatures(), l.OutFeatures())
	}
}
