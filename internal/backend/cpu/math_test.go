package cpu

import (
	"math"
	"testing"

	"github.com/mirage-ml/mirage/internal/tensor"
)

const epsilon = 1e-5

func TestExp(t *testing.T) {
	backend := New()

	tests := []struct {
		name  string
		input []float32
		shape tensor.Shape
	}{
		{
			name:  "positive values",
			input: []float32{0, 1, 2, 3},
			shape: tensor.Shape{4},
		},
		{
			name:  "negative values",
			input: []float32{-3, -2, -1, 0},
			shape: tensor.Shape{4},
		},
		{
			name:  "2D tensor",
			input: []float32{0, 1, -1, 2},
			shape: tensor.Shape{2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := rawFromFloat32(t, tt.input, tt.shape)

			result := backend.Exp(x)

			if !result.Shape().Equal(tt.shape) {
				t.Errorf("Expected shape %v, got %v", tt.shape, result.Shape())
			}

			output := result.AsFloat32()
			for i, v := range tt.input {
				expected := float32(math.Exp(float64(v)))
				if math.Abs(float64(output[i]-expected)) > epsilon {
					t.Errorf("exp(%f) = %f, expected %f", v, output[i], expected)
				}
			}
		})
	}
}

func TestLog(t *testing.T) {
	backend := New()

	input := []float32{1, math.E, 10, 0.5}
	x := rawFromFloat32(t, input, tensor.Shape{4})

	result := backend.Log(x)

	output := result.AsFloat32()
	for i, v := range input {
		expected := float32(math.Log(float64(v)))
		if math.Abs(float64(output[i]-expected)) > epsilon {
			t.Errorf("log(%f) = %f, expected %f", v, output[i], expected)
		}
	}
}

func TestLogNonPositivePanic(t *testing.T) {
	backend := New()
	x := rawFromFloat32(t, []float32{1, 0}, tensor.Shape{2})

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for zero value")
		}
	}()

	backend.Log(x)
}

func TestSqrt(t *testing.T) {
	backend := New()

	input := []float32{0, 1, 4, 9, 2}
	x := rawFromFloat32(t, input, tensor.Shape{5})

	result := backend.Sqrt(x)

	output := result.AsFloat32()
	for i, v := range input {
		expected := float32(math.Sqrt(float64(v)))
		if math.Abs(float64(output[i]-expected)) > epsilon {
			t.Errorf("sqrt(%f) = %f, expected %f", v, output[i], expected)
		}
	}
}

func TestSqrtNegativePanic(t *testing.T) {
	backend := New()
	x := rawFromFloat32(t, []float32{-1, 1}, tensor.Shape{2})

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for negative value")
		}
	}()

	backend.Sqrt(x)
}

func TestRsqrt(t *testing.T) {
	backend := New()

	input := []float32{1, 4, 16, 0.25}
	x := rawFromFloat32(t, input, tensor.Shape{4})

	result := backend.Rsqrt(x)

	output := result.AsFloat32()
	expected := []float32{1, 0.5, 0.25, 2}
	for i := range expected {
		if math.Abs(float64(output[i]-expected[i])) > epsilon {
			t.Errorf("rsqrt(%f) = %f, expected %f", input[i], output[i], expected[i])
		}
	}
}

func TestRsqrtNonPositivePanic(t *testing.T) {
	backend := New()
	x := rawFromFloat32(t, []float32{0}, tensor.Shape{1})

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for zero value")
		}
	}()

	backend.Rsqrt(x)
}

func TestCos(t *testing.T) {
	backend := New()

	input := []float32{0, float32(math.Pi / 2), float32(math.Pi), 1}
	x := rawFromFloat32(t, input, tensor.Shape{4})

	result := backend.Cos(x)

	output := result.AsFloat32()
	for i, v := range input {
		expected := float32(math.Cos(float64(v)))
		if math.Abs(float64(output[i]-expected)) > epsilon {
			t.Errorf("cos(%f) = %f, expected %f", v, output[i], expected)
		}
	}
}

func TestSin(t *testing.T) {
	backend := New()

	input := []float32{0, float32(math.Pi / 2), float32(math.Pi), 1}
	x := rawFromFloat32(t, input, tensor.Shape{4})

	result := backend.Sin(x)

	output := result.AsFloat32()
	for i, v := range input {
		expected := float32(math.Sin(float64(v)))
		if math.Abs(float64(output[i]-expected)) > epsilon {
			t.Errorf("sin(%f) = %f, expected %f", v, output[i], expected)
		}
	}
}

func TestMathFloat64(t *testing.T) {
	backend := New()

	x, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float64, tensor.CPU)
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	copy(x.AsFloat64(), []float64{1, 2, 3})

	result := backend.Exp(x)

	output := result.AsFloat64()
	for i, v := range []float64{1, 2, 3} {
		expected := math.Exp(v)
		if math.Abs(output[i]-expected) > 1e-12 {
			t.Errorf("exp(%f) = %f, expected %f", v, output[i], expected)
		}
	}
}

func TestMathIntPanics(t *testing.T) {
	backend := New()

	x, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	copy(x.AsInt32(), []int32{1, 2})

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for integer dtype")
		}
	}()

	backend.Exp(x)
}
