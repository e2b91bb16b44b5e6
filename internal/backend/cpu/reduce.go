package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Sum computes the total sum over all elements.
// The result is a scalar tensor with empty shape.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult(tensor.Shape{}, x.DType(), cpu.device, "sum")

	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sumKernel(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sumKernel(x.AsFloat64())
	case tensor.Int32:
		result.AsInt32()[0] = sumKernel(x.AsInt32())
	case tensor.Int64:
		result.AsInt64()[0] = sumKernel(x.AsInt64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// With keepDim the reduced dimension stays with size 1, otherwise it is
// removed. Supports negative dim indexing (-1 = last dimension).
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim(x, dim, keepDim, false, "sumdim")
}

// MeanDim averages tensor elements along the specified dimension.
//
// With keepDim the reduced dimension stays with size 1, otherwise it is
// removed. Supports negative dim indexing (-1 = last dimension).
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim(x, dim, keepDim, true, "meandim")
}

func (cpu *CPUBackend) reduceDim(x *tensor.RawTensor, dim int, keepDim, mean bool, name string) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("%s: dimension %d out of range for %dD tensor", name, dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result := newResult(outShape, x.DType(), cpu.device, name)

	switch x.DType() {
	case tensor.Float32:
		reduceDimKernel(result.AsFloat32(), x.AsFloat32(), shape, dim, mean)
	case tensor.Float64:
		reduceDimKernel(result.AsFloat64(), x.AsFloat64(), shape, dim, mean)
	case tensor.Int32:
		reduceDimKernel(result.AsInt32(), x.AsInt32(), shape, dim, mean)
	case tensor.Int64:
		reduceDimKernel(result.AsInt64(), x.AsInt64(), shape, dim, mean)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

func sumKernel[T tensor.DType](src []T) T {
	var sum T
	for _, v := range src {
		sum += v
	}
	return sum
}

// reduceDimKernel collapses one dimension of src into dst. Output index o
// decomposes into the coordinates before and after the reduced dimension;
// the reduced coordinate walks dimStride-spaced elements.
func reduceDimKernel[T tensor.DType](dst, src []T, shape tensor.Shape, dim int, mean bool) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	numOut := len(dst)
	for o := 0; o < numOut; o++ {
		pre := o / dimStride
		post := o % dimStride
		base := pre*dimSize*dimStride + post

		var sum T
		for i := 0; i < dimSize; i++ {
			sum += src[base+i*dimStride]
		}
		if mean {
			sum /= T(dimSize)
		}
		dst[o] = sum
	}
}
