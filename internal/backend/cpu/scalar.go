package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Scalar operations. The scalar's dynamic type must match the tensor
// dtype (float32 tensor takes a float32 scalar, and so on).

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp(x, scalar, opMul, "mulScalar")
}

// AddScalar adds a scalar value to each element of the tensor.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp(x, scalar, opAdd, "addScalar")
}

// SubScalar subtracts a scalar value from each element of the tensor.
func (cpu *CPUBackend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp(x, scalar, opSub, "subScalar")
}

// DivScalar divides each element of the tensor by a scalar value.
func (cpu *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp(x, scalar, opDiv, "divScalar")
}

func (cpu *CPUBackend) scalarOp(x *tensor.RawTensor, scalar any, op binOp, name string) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), cpu.device, name)

	switch x.DType() {
	case tensor.Float32:
		scalarKernel(result.AsFloat32(), x.AsFloat32(), asScalar[float32](scalar, name), op)
	case tensor.Float64:
		scalarKernel(result.AsFloat64(), x.AsFloat64(), asScalar[float64](scalar, name), op)
	case tensor.Int32:
		scalarKernel(result.AsInt32(), x.AsInt32(), asScalar[int32](scalar, name), op)
	case tensor.Int64:
		scalarKernel(result.AsInt64(), x.AsInt64(), asScalar[int64](scalar, name), op)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

func asScalar[T tensor.DType](scalar any, name string) T {
	v, ok := scalar.(T)
	if !ok {
		panic(fmt.Sprintf("%s: scalar type %T does not match tensor dtype", name, scalar))
	}
	return v
}

func scalarKernel[T tensor.DType](dst, src []T, s T, op binOp) {
	switch op {
	case opAdd:
		for i := range dst {
			dst[i] = src[i] + s
		}
	case opSub:
		for i := range dst {
			dst[i] = src[i] - s
		}
	case opMul:
		for i := range dst {
			dst[i] = src[i] * s
		}
	case opDiv:
		for i := range dst {
			dst[i] = src[i] / s
		}
	}
}
