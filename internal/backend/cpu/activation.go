package cpu

import (
	"fmt"
	"math"

	"github.com/mirage-ml/mirage/internal/parallel"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Softmax computes softmax along the specified dimension.
// Softmax(x_i) = exp(x_i) / sum(exp(x_j)) for all j in dimension.
//
// The max of each row is subtracted before exponentiation so large
// attention logits do not overflow.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: dimension %d out of range for tensor of rank %d", dim, ndim))
	}

	result := newResult(shape, x.DType(), cpu.device, "softmax")

	switch x.DType() {
	case tensor.Float32:
		softmaxKernel(result.AsFloat32(), x.AsFloat32(), shape, dim, cpu.pool)
	case tensor.Float64:
		softmaxKernel(result.AsFloat64(), x.AsFloat64(), shape, dim, cpu.pool)
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

func softmaxKernel[T floatType](dst, src []T, shape tensor.Shape, dim int, pool parallel.Config) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	// Rows are the groups of elements that share one normalization.
	numRows := 1
	for i := range shape {
		if i != dim {
			numRows *= shape[i]
		}
	}

	parallel.For(numRows, func(row int) {
		baseIdx := 0
		remaining := row
		for i := 0; i < len(shape); i++ {
			if i == dim {
				continue
			}
			coord := remaining % shape[i]
			remaining /= shape[i]
			baseIdx += coord * strides[i]
		}

		maxVal := T(math.Inf(-1))
		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			if src[idx] > maxVal {
				maxVal = src[idx]
			}
		}

		var sum T
		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			expVal := T(math.Exp(float64(src[idx] - maxVal)))
			dst[idx] = expVal
			sum += expVal
		}

		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			dst[idx] /= sum
		}
	}, pool)
}

// SiLU computes element-wise x * sigmoid(x).
func (cpu *CPUBackend) SiLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.mathOp(x, "silu", func(v float64) float64 {
		return v / (1.0 + math.Exp(-v))
	})
}

// Sigmoid computes element-wise 1 / (1 + exp(-x)).
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.mathOp(x, "sigmoid", func(v float64) float64 {
		return 1.0 / (1.0 + math.Exp(-v))
	})
}

// GELUTanh computes the tanh approximation of the Gaussian error linear
// unit: 0.5*x*(1 + tanh(sqrt(2/pi)*(x + 0.044715*x^3))).
func (cpu *CPUBackend) GELUTanh(x *tensor.RawTensor) *tensor.RawTensor {
	const c = 0.7978845608028654 // sqrt(2/pi)
	return cpu.mathOp(x, "gelu", func(v float64) float64 {
		return 0.5 * v * (1.0 + math.Tanh(c*(v+0.044715*v*v*v)))
	})
}
