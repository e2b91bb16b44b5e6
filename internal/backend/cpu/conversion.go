package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Cast converts the tensor to a different data type.
// Returns x unchanged when the dtype already matches.
// Float to integer conversion truncates toward zero.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x
	}

	result := newResult(x.Shape(), dtype, cpu.device, "cast")

	switch x.DType() {
	case tensor.Float32:
		castFrom(result, x.AsFloat32(), dtype)
	case tensor.Float64:
		castFrom(result, x.AsFloat64(), dtype)
	case tensor.Int32:
		castFrom(result, x.AsInt32(), dtype)
	case tensor.Int64:
		castFrom(result, x.AsInt64(), dtype)
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %s", x.DType()))
	}

	return result
}

func castFrom[S tensor.DType](result *tensor.RawTensor, src []S, to tensor.DataType) {
	switch to {
	case tensor.Float32:
		castKernel(result.AsFloat32(), src)
	case tensor.Float64:
		castKernel(result.AsFloat64(), src)
	case tensor.Int32:
		castKernel(result.AsInt32(), src)
	case tensor.Int64:
		castKernel(result.AsInt64(), src)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %s", to))
	}
}

func castKernel[D, S tensor.DType](dst []D, src []S) {
	for i, v := range src {
		dst[i] = D(v)
	}
}
