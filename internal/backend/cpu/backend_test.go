package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Helper to create test backend.
func newTestBackend() *CPUBackend {
	return New()
}

// Helper to check float32 slices are equal within epsilon.
func float32SliceEqual(a, b []float32) bool {
	const eps = 1e-6
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > eps {
			return false
		}
	}
	return true
}

// Helper to create a float32 tensor from literal data.
func rawFromFloat32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	copy(raw.AsFloat32(), data)
	return raw
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	if backend == nil {
		t.Fatal("New() returned nil")
	}
	if backend.Name() != "CPU" {
		t.Errorf("Expected name 'CPU', got '%s'", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Expected device CPU, got %v", backend.Device())
	}
}

func TestCPUBackend_NewSequential(t *testing.T) {
	backend := NewSequential()
	if backend.pool.Enabled {
		t.Error("NewSequential() should disable parallel execution")
	}
	if backend.Name() != "CPU" {
		t.Errorf("Expected name 'CPU', got '%s'", backend.Name())
	}
}

// TestCPUBackend_Add tests element-wise addition.
func TestCPUBackend_Add(t *testing.T) {
	backend := newTestBackend()

	t.Run("SameShape", func(t *testing.T) {
		a := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
		b := rawFromFloat32(t, []float32{10, 11, 12, 13, 14, 15}, tensor.Shape{2, 3})

		result := backend.Add(a, b)

		expected := []float32{11, 13, 15, 17, 19, 21}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Add failed: got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("InplaceOptimization", func(t *testing.T) {
		a := rawFromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3})
		b := rawFromFloat32(t, []float32{10, 20, 30}, tensor.Shape{3})

		if !a.IsUnique() {
			t.Skip("Test requires unique tensor for inplace path")
		}

		result := backend.Add(a, b)

		if result != a {
			t.Error("Expected inplace path to return the left operand")
		}

		expected := []float32{11, 22, 33}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Add with inplace failed: got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("SelfOperandCopies", func(t *testing.T) {
		backend := newTestBackend()
		a := rawFromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3})

		result := backend.Add(a, a)

		assert.NotSame(t, a, result, "x op x must not mutate x")
		assert.True(t, float32SliceEqual([]float32{2, 4, 6}, result.AsFloat32()))
		assert.True(t, float32SliceEqual([]float32{1, 2, 3}, a.AsFloat32()))
	})

	t.Run("SharedBufferCopies", func(t *testing.T) {
		a := rawFromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3})
		b := rawFromFloat32(t, []float32{10, 20, 30}, tensor.Shape{3})

		shared := a.Clone() // a is no longer unique
		defer shared.Release()

		result := backend.Add(a, b)

		if result == a {
			t.Error("Expected a fresh result when the left operand buffer is shared")
		}
		if !float32SliceEqual(a.AsFloat32(), []float32{1, 2, 3}) {
			t.Errorf("Left operand was mutated: %v", a.AsFloat32())
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{11, 22, 33}) {
			t.Errorf("Add failed: got %v", result.AsFloat32())
		}
	})
}

// TestCPUBackend_AddBroadcasting tests broadcasting addition.
func TestCPUBackend_AddBroadcasting(t *testing.T) {
	backend := newTestBackend()

	t.Run("Broadcast_3x1_plus_4", func(t *testing.T) {
		a := rawFromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3, 1})
		b := rawFromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{4})

		result := backend.Add(a, b)

		if !result.Shape().Equal(tensor.Shape{3, 4}) {
			t.Fatalf("Expected shape [3, 4], got %v", result.Shape())
		}

		expected := []float32{
			11, 21, 31, 41,
			12, 22, 32, 42,
			13, 23, 33, 43,
		}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Broadcast add failed: got %v", result.AsFloat32())
		}
	})

	// Modulation pattern: per-sequence shift applied to every token.
	t.Run("Broadcast_TokenShift", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 3, 2})
		shift := rawFromFloat32(t, []float32{10, 100}, tensor.Shape{1, 1, 2})

		result := backend.Add(x, shift)

		if !result.Shape().Equal(tensor.Shape{1, 3, 2}) {
			t.Fatalf("Expected shape [1, 3, 2], got %v", result.Shape())
		}

		expected := []float32{11, 102, 13, 104, 15, 106}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Token shift failed: got %v", result.AsFloat32())
		}
	})
}

func TestCPUBackend_Sub(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{4})
	b := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{4})

	result := backend.Sub(a, b)

	expected := []float32{9, 18, 27, 36}
	if !float32SliceEqual(result.AsFloat32(), expected) {
		t.Errorf("Sub failed: got %v, expected %v", result.AsFloat32(), expected)
	}
}

func TestCPUBackend_Mul(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{4})
	b := rawFromFloat32(t, []float32{2, 3, 4, 5}, tensor.Shape{4})

	result := backend.Mul(a, b)

	expected := []float32{2, 6, 12, 20}
	if !float32SliceEqual(result.AsFloat32(), expected) {
		t.Errorf("Mul failed: got %v, expected %v", result.AsFloat32(), expected)
	}
}

func TestCPUBackend_Div(t *testing.T) {
	backend := newTestBackend()

	a := rawFromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{4})
	b := rawFromFloat32(t, []float32{2, 4, 5, 8}, tensor.Shape{4})

	result := backend.Div(a, b)

	expected := []float32{5, 5, 6, 5}
	if !float32SliceEqual(result.AsFloat32(), expected) {
		t.Errorf("Div failed: got %v, expected %v", result.AsFloat32(), expected)
	}
}

// TestCPUBackend_ScalarOps tests the scalar variants of the arithmetic ops.
func TestCPUBackend_ScalarOps(t *testing.T) {
	backend := newTestBackend()

	t.Run("MulScalar", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{1, -2, 3}, tensor.Shape{3})
		result := backend.MulScalar(x, float32(2.5))
		expected := []float32{2.5, -5, 7.5}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("MulScalar failed: got %v", result.AsFloat32())
		}
	})

	t.Run("AddScalar", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3})
		result := backend.AddScalar(x, float32(10))
		expected := []float32{11, 12, 13}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("AddScalar failed: got %v", result.AsFloat32())
		}
	})

	t.Run("SubScalar", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3})
		result := backend.SubScalar(x, float32(1))
		expected := []float32{0, 1, 2}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("SubScalar failed: got %v", result.AsFloat32())
		}
	})

	t.Run("DivScalar", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{2, 4, 6}, tensor.Shape{3})
		result := backend.DivScalar(x, float32(2))
		expected := []float32{1, 2, 3}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("DivScalar failed: got %v", result.AsFloat32())
		}
	})

	t.Run("ScalarTypeMismatchPanics", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{1}, tensor.Shape{1})

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for float64 scalar on float32 tensor")
			}
		}()

		backend.MulScalar(x, float64(2))
	})

	t.Run("Int64Scalar", func(t *testing.T) {
		x, _ := tensor.NewRaw(tensor.Shape{3}, tensor.Int64, tensor.CPU)
		copy(x.AsInt64(), []int64{1, 2, 3})

		result := backend.AddScalar(x, int64(100))

		got := result.AsInt64()
		want := []int64{101, 102, 103}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("AddScalar int64 failed: got %v, want %v", got, want)
				break
			}
		}
	})
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := newTestBackend()

	t.Run("Basic2D", func(t *testing.T) {
		// [2, 3] @ [3, 2] -> [2, 2]
		a := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
		b := rawFromFloat32(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

		result := backend.MatMul(a, b)

		if !result.Shape().Equal(tensor.Shape{2, 2}) {
			t.Fatalf("Expected shape [2, 2], got %v", result.Shape())
		}

		// [1*7+2*9+3*11, 1*8+2*10+3*12] = [58, 64]
		// [4*7+5*9+6*11, 4*8+5*10+6*12] = [139, 154]
		expected := []float32{58, 64, 139, 154}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("MatMul failed: got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("Identity", func(t *testing.T) {
		a := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
		eye := rawFromFloat32(t, []float32{1, 0, 0, 1}, tensor.Shape{2, 2})

		result := backend.MatMul(a, eye)

		if !float32SliceEqual(result.AsFloat32(), a.AsFloat32()) {
			t.Errorf("MatMul with identity failed: got %v", result.AsFloat32())
		}
	})

	t.Run("ShapeMismatchPanics", func(t *testing.T) {
		a := rawFromFloat32(t, make([]float32, 6), tensor.Shape{2, 3})
		b := rawFromFloat32(t, make([]float32, 8), tensor.Shape{4, 2})

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for inner dimension mismatch")
			}
		}()

		backend.MatMul(a, b)
	})
}

func TestCPUBackend_Reshape(t *testing.T) {
	backend := newTestBackend()

	x := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	result := backend.Reshape(x, tensor.Shape{3, 2})

	if !result.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Expected shape [3, 2], got %v", result.Shape())
	}
	if !float32SliceEqual(result.AsFloat32(), x.AsFloat32()) {
		t.Error("Reshape should preserve data order")
	}

	t.Run("ElementCountMismatchPanics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for incompatible reshape")
			}
		}()

		backend.Reshape(x, tensor.Shape{4, 2})
	})
}

func TestCPUBackend_Transpose(t *testing.T) {
	backend := newTestBackend()

	t.Run("Default2D", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

		result := backend.Transpose(x)

		if !result.Shape().Equal(tensor.Shape{3, 2}) {
			t.Fatalf("Expected shape [3, 2], got %v", result.Shape())
		}

		expected := []float32{1, 4, 2, 5, 3, 6}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Transpose failed: got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	// Head split pattern: [B, N, H, D] -> [B, H, N, D].
	t.Run("Permute4D", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{
			1, 2, 3, 4,
			5, 6, 7, 8,
		}, tensor.Shape{1, 2, 2, 2})

		result := backend.Transpose(x, 0, 2, 1, 3)

		if !result.Shape().Equal(tensor.Shape{1, 2, 2, 2}) {
			t.Fatalf("Expected shape [1, 2, 2, 2], got %v", result.Shape())
		}

		// [0][n][h][d] -> [0][h][n][d]
		expected := []float32{1, 2, 5, 6, 3, 4, 7, 8}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Permute failed: got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("InvalidAxesPanics", func(t *testing.T) {
		x := rawFromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for duplicate axes")
			}
		}()

		backend.Transpose(x, 0, 0)
	})
}

// TestCPUBackend_MultiDType tests arithmetic across the supported dtypes.
func TestCPUBackend_MultiDType(t *testing.T) {
	backend := newTestBackend()

	t.Run("Int32Add", func(t *testing.T) {
		a, _ := tensor.NewRaw(tensor.Shape{3}, tensor.Int32, tensor.CPU)
		b, _ := tensor.NewRaw(tensor.Shape{3}, tensor.Int32, tensor.CPU)
		copy(a.AsInt32(), []int32{1, 2, 3})
		copy(b.AsInt32(), []int32{10, 20, 30})

		result := backend.Add(a, b)

		got := result.AsInt32()
		want := []int32{11, 22, 33}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Int32 add failed: got %v, want %v", got, want)
			}
		}
	})

	t.Run("Int64Mul", func(t *testing.T) {
		a, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Int64, tensor.CPU)
		b, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Int64, tensor.CPU)
		copy(a.AsInt64(), []int64{3, 4})
		copy(b.AsInt64(), []int64{5, 6})

		result := backend.Mul(a, b)

		got := result.AsInt64()
		want := []int64{15, 24}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Int64 mul failed: got %v, want %v", got, want)
			}
		}
	})

	t.Run("Float64Div", func(t *testing.T) {
		a, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Float64, tensor.CPU)
		b, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Float64, tensor.CPU)
		copy(a.AsFloat64(), []float64{1, 3})
		copy(b.AsFloat64(), []float64{2, 4})

		result := backend.Div(a, b)

		got := result.AsFloat64()
		want := []float64{0.5, 0.75}
		for i := range want {
			diff := got[i] - want[i]
			if diff < -1e-12 || diff > 1e-12 {
				t.Fatalf("Float64 div failed: got %v, want %v", got, want)
			}
		}
	})
}

// TestCPUBackend_MatchesMockBackend cross-checks the optimized kernels
// against the reference backend.
func TestCPUBackend_MatchesMockBackend(t *testing.T) {
	cpuBackend := New()
	mockBackend := tensor.NewMockBackend()

	a, _ := tensor.NewRaw(tensor.Shape{4, 5}, tensor.Float32, tensor.CPU)
	b, _ := tensor.NewRaw(tensor.Shape{5}, tensor.Float32, tensor.CPU)
	aData := a.AsFloat32()
	for i := range aData {
		aData[i] = float32(i%7) - 3
	}
	bData := b.AsFloat32()
	for i := range bData {
		bData[i] = float32(i) + 0.5
	}

	type binFn func(x, y *tensor.RawTensor) *tensor.RawTensor
	cases := []struct {
		name string
		cpu  binFn
		mock binFn
	}{
		{"Add", cpuBackend.Add, mockBackend.Add},
		{"Sub", cpuBackend.Sub, mockBackend.Sub},
		{"Mul", cpuBackend.Mul, mockBackend.Mul},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Clone so the unique-buffer inplace path cannot consume the shared input.
			aCopy := a.Clone()
			defer aCopy.Release()

			cpuOut := tc.cpu(aCopy, b)
			mockOut := tc.mock(a, b)

			if !cpuOut.Shape().Equal(mockOut.Shape()) {
				t.Fatalf("Shape mismatch: CPU=%v, Mock=%v", cpuOut.Shape(), mockOut.Shape())
			}
			if !float32SliceEqual(cpuOut.AsFloat32(), mockOut.AsFloat32()) {
				t.Errorf("%s mismatch: CPU=%v, Mock=%v", tc.name, cpuOut.AsFloat32(), mockOut.AsFloat32())
			}
		})
	}
}

// TestCPUBackend_ParallelMatchesSequential verifies the worker pool does
// not change results.
func TestCPUBackend_ParallelMatchesSequential(t *testing.T) {
	par := New()
	seq := NewSequential()

	a, _ := tensor.NewRaw(tensor.Shape{64, 32}, tensor.Float32, tensor.CPU)
	b, _ := tensor.NewRaw(tensor.Shape{32, 48}, tensor.Float32, tensor.CPU)
	aData := a.AsFloat32()
	for i := range aData {
		aData[i] = float32(i%13) - 6
	}
	bData := b.AsFloat32()
	for i := range bData {
		bData[i] = float32(i%11) * 0.25
	}

	parOut := par.MatMul(a, b)
	seqOut := seq.MatMul(a, b)

	if !float32SliceEqual(parOut.AsFloat32(), seqOut.AsFloat32()) {
		t.Error("Parallel matmul differs from sequential result")
	}

	sm := par.Softmax(parOut, -1)
	smSeq := seq.Softmax(seqOut, -1)
	if !float32SliceEqual(sm.AsFloat32(), smSeq.AsFloat32()) {
		t.Error("Parallel softmax differs from sequential result")
	}
}
