package tensor

import (
	"math"
	"testing"
)

// Softmax Tests

func TestTensorSoftmax(t *testing.T) {
	backend := NewMockBackend()
	// [[1, 2, 3],
	//  [4, 5, 6]]
	tensor, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)

	// Softmax along dim 1 (across columns)
	result := tensor.Softmax(1)

	assertEqualShape(t, Shape{2, 3}, result.Shape(), "Softmax shape")

	// Check that each row sums to 1
	for i := 0; i < 2; i++ {
		sum := float32(0)
		for j := 0; j < 3; j++ {
			val := result.At(i, j)
			if val < 0 || val > 1 {
				t.Errorf("Softmax[%d,%d] = %v, should be in [0, 1]", i, j, val)
			}
			sum += val
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("Softmax row %d sum = %v, want 1", i, sum)
		}
	}

	// Check that values are in increasing order in each row (since input is increasing)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if result.At(i, j) >= result.At(i, j+1) {
				t.Errorf("Softmax[%d,%d] = %v should be < Softmax[%d,%d] = %v",
					i, j, result.At(i, j), i, j+1, result.At(i, j+1))
			}
		}
	}
}

func TestTensorSoftmaxDim0(t *testing.T) {
	backend := NewMockBackend()
	// [[1, 2],
	//  [3, 4]]
	tensor, _ := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, backend)

	// Softmax along dim 0 (across rows)
	result := tensor.Softmax(0)

	assertEqualShape(t, Shape{2, 2}, result.Shape(), "Softmax dim 0 shape")

	// Check that each column sums to 1
	for j := 0; j < 2; j++ {
		sum := float32(0)
		for i := 0; i < 2; i++ {
			val := result.At(i, j)
			sum += val
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("Softmax column %d sum = %v, want 1", j, sum)
		}
	}
}

func TestTensorSoftmax1D(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1, 2, 3, 4, 5}, Shape{5}, backend)

	result := tensor.Softmax(0)

	assertEqualShape(t, Shape{5}, result.Shape(), "Softmax 1D shape")

	// Check sum equals 1
	sum := float32(0)
	data := result.Data()
	for _, v := range data {
		sum += v
	}

	if math.Abs(float64(sum-1)) > 1e-5 {
		t.Errorf("Softmax 1D sum = %v, want 1", sum)
	}

	// Check values are monotonically increasing (since input is increasing)
	for i := 0; i < 4; i++ {
		if data[i] >= data[i+1] {
			t.Errorf("Softmax[%d] = %v should be < Softmax[%d] = %v",
				i, data[i], i+1, data[i+1])
		}
	}
}

func TestTensorSoftmaxNegativeDim(t *testing.T) {
	backend := NewMockBackend()
	tensor, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)

	neg := tensor.Softmax(-1)
	pos := tensor.Softmax(1)

	negData := neg.Data()
	posData := pos.Data()
	for i := range negData {
		if math.Abs(float64(negData[i]-posData[i])) > 1e-6 {
			t.Errorf("Softmax(-1)[%d] = %v differs from Softmax(1)[%d] = %v",
				i, negData[i], i, posData[i])
		}
	}
}

func TestTensorSoftmaxStability(t *testing.T) {
	backend := NewMockBackend()
	// Large logits overflow a naive exp-then-normalize implementation.
	tensor, _ := FromSlice([]float32{1000, 1001, 1002}, Shape{3}, backend)

	result := tensor.Softmax(0)

	sum := float32(0)
	for _, v := range result.Data() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("Softmax produced non-finite value %v", v)
		}
		sum += v
	}

	if math.Abs(float64(sum-1)) > 1e-5 {
		t.Errorf("Softmax sum = %v, want 1", sum)
	}
}
