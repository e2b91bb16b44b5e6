package nn

import (
	"testing"

	"github.com/mirage-ml/mirage/internal/backend/cpu"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// The CPU backend provides fused activation kernels; the mock backend does
// not, so it exercises the composed fallback. Both must agree.

func TestSigmoidValues(t *testing.T) {
	backend := cpu.New()
	sigmoid := NewSigmoid[*cpu.CPUBackend]()

	input, err := tensor.FromSlice([]float32{0, 2, -2}, tensor.Shape{3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := sigmoid.Forward(input)
	want := []float32{0.5, 0.880797, 0.119203}
	if !sliceEqual(output.Data(), want, 1e-5) {
		t.Errorf("sigmoid = %v, want %v", output.Data(), want)
	}
}

func TestSiLUValues(t *testing.T) {
	backend := cpu.New()
	silu := NewSiLU[*cpu.CPUBackend]()

	input, err := tensor.FromSlice([]float32{0, 1, -1}, tensor.Shape{3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := silu.Forward(input)
	want := []float32{0, 0.731059, -0.268941}
	if !sliceEqual(output.Data(), want, 1e-5) {
		t.Errorf("silu = %v, want %v", output.Data(), want)
	}
}

func TestGELUTanhValues(t *testing.T) {
	backend := cpu.New()
	gelu := NewGELUTanh[*cpu.CPUBackend]()

	input, err := tensor.FromSlice([]float32{0, 1, -1}, tensor.Shape{3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := gelu.Forward(input)
	want := []float32{0, 0.841192, -0.158808}
	if !sliceEqual(output.Data(), want, 1e-4) {
		t.Errorf("gelu = %v, want %v", output.Data(), want)
	}
}

func TestComposedFallbackMatchesFused(t *testing.T) {
	cpuBackend := cpu.New()
	mockBackend := tensor.NewMockBackend()

	values := []float32{-3, -1, -0.5, 0, 0.5, 1, 3}
	shape := tensor.Shape{len(values)}

	cpuIn, err := tensor.FromSlice(values, shape, cpuBackend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	mockIn, err := tensor.FromSlice(values, shape, mockBackend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	t.Run("Sigmoid", func(t *testing.T) {
		fused := NewSigmoid[*cpu.CPUBackend]().Forward(cpuIn)
		composed := NewSigmoid[*tensor.MockBackend]().Forward(mockIn)
		if !sliceEqual(fused.Data(), composed.Data(), 1e-5) {
			t.Errorf("fused %v != composed %v", fused.Data(), composed.Data())
		}
	})

	t.Run("SiLU", func(t *testing.T) {
		fused := NewSiLU[*cpu.CPUBackend]().Forward(cpuIn)
		composed := NewSiLU[*tensor.MockBackend]().Forward(mockIn)
		if !sliceEqual(fused.Data(), composed.Data(), 1e-5) {
			t.Errorf("fused %v != composed %v", fused.Data(), composed.Data())
		}
	})

	t.Run("GELUTanh", func(t *testing.T) {
		fused := NewGELUTanh[*cpu.CPUBackend]().Forward(cpuIn)
		composed := NewGELUTanh[*tensor.MockBackend]().Forward(mockIn)
		if !sliceEqual(fused.Data(), composed.Data(), 1e-4) {
			t.Errorf("fused %v != composed %v", fused.Data(), composed.Data())
		}
	})
}

func TestComposedFallbackInputUnchanged(t *testing.T) {
	backend := tensor.NewMockBackend()

	values := []float32{-2, -1, 0, 1, 2}
	input, err := tensor.FromSlice(values, tensor.Shape{5}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	NewSiLU[*tensor.MockBackend]().Forward(input)
	NewGELUTanh[*tensor.MockBackend]().Forward(input)

	for i, v := range input.Data() {
		if v != values[i] {
			t.Fatalf("composed activation mutated its input at %d: %f != %f", i, v, values[i])
		}
	}
}

func TestActivationsHaveNoParameters(t *testing.T) {
	if len(NewSiLU[*cpu.CPUBackend]().Parameters()) != 0 {
		t.Error("SiLU should have no parameters")
	}
	if len(NewSigmoid[*cpu.CPUBackend]().Parameters()) != 0 {
		t.Error("Sigmoid should have no parameters")
	}
	if len(NewGELUTanh[*cpu.CPUBackend]().Parameters()) != 0 {
		t.Error("GELUTanh should have no parameters")
	}
}
