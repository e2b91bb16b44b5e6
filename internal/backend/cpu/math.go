package cpu

import (
	"fmt"
	"math"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Element-wise math operations. Defined for float32/float64 tensors only.

// Exp computes element-wise exponential: exp(x).
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.mathOp(x, "exp", math.Exp)
}

// Log computes element-wise natural logarithm: ln(x).
// Panics on non-positive values.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.mathOp(x, "log", func(v float64) float64 {
		if v <= 0 {
			panic(fmt.Sprintf("log: non-positive value: %f", v))
		}
		return math.Log(v)
	})
}

// Sqrt computes element-wise square root: sqrt(x).
// Panics on negative values.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.mathOp(x, "sqrt", func(v float64) float64 {
		if v < 0 {
			panic(fmt.Sprintf("sqrt: negative value: %f", v))
		}
		return math.Sqrt(v)
	})
}

// Rsqrt computes element-wise reciprocal square root: 1/sqrt(x).
// Panics on non-positive values.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.mathOp(x, "rsqrt", func(v float64) float64 {
		if v <= 0 {
			panic(fmt.Sprintf("rsqrt: non-positive value: %f", v))
		}
		return 1.0 / math.Sqrt(v)
	})
}

// Cos computes element-wise cosine: cos(x).
func (cpu *CPUBackend) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.mathOp(x, "cos", math.Cos)
}

// Sin computes element-wise sine: sin(x).
func (cpu *CPUBackend) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.mathOp(x, "sin", math.Sin)
}

// floatType constrains kernels that only make sense for floating point data.
type floatType interface {
	~float32 | ~float64
}

func (cpu *CPUBackend) mathOp(x *tensor.RawTensor, name string, f func(float64) float64) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), cpu.device, name)

	switch x.DType() {
	case tensor.Float32:
		unaryFloatKernel(result.AsFloat32(), x.AsFloat32(), f)
	case tensor.Float64:
		unaryFloatKernel(result.AsFloat64(), x.AsFloat64(), f)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", name, x.DType()))
	}

	return result
}

func unaryFloatKernel[T floatType](dst, src []T, f func(float64) float64) {
	for i, v := range src {
		dst[i] = T(f(float64(v)))
	}
}
