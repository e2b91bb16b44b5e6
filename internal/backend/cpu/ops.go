package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// binOp selects the arithmetic performed by the shared binary kernels.
type binOp int

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
)

// binaryInplace updates a in place (a op= b).
// Requires: a.Shape().Equal(b.Shape()) && a.IsUnique().
func binaryInplace(a, b *tensor.RawTensor, op binOp, name string) {
	switch a.DType() {
	case tensor.Float32:
		inplaceKernel(a.AsFloat32(), b.AsFloat32(), op)
	case tensor.Float64:
		inplaceKernel(a.AsFloat64(), b.AsFloat64(), op)
	case tensor.Int32:
		inplaceKernel(a.AsInt32(), b.AsInt32(), op)
	case tensor.Int64:
		inplaceKernel(a.AsInt64(), b.AsInt64(), op)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
}

// binaryVectorized computes result = a op b over same-shape operands.
func binaryVectorized(result, a, b *tensor.RawTensor, op binOp, name string) {
	switch a.DType() {
	case tensor.Float32:
		vectorizedKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), op)
	case tensor.Float64:
		vectorizedKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), op)
	case tensor.Int32:
		vectorizedKernel(result.AsInt32(), a.AsInt32(), b.AsInt32(), op)
	case tensor.Int64:
		vectorizedKernel(result.AsInt64(), a.AsInt64(), b.AsInt64(), op)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
}

// binaryBroadcast computes result = a op b where both operands broadcast
// to outShape.
func binaryBroadcast(result, a, b *tensor.RawTensor, outShape tensor.Shape, op binOp, name string) {
	switch a.DType() {
	case tensor.Float32:
		broadcastKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, op)
	case tensor.Float64:
		broadcastKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, op)
	case tensor.Int32:
		broadcastKernel(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape, op)
	case tensor.Int64:
		broadcastKernel(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape, op)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
}

func inplaceKernel[T tensor.DType](a, b []T, op binOp) {
	switch op {
	case opAdd:
		for i := range a {
			a[i] += b[i]
		}
	case opSub:
		for i := range a {
			a[i] -= b[i]
		}
	case opMul:
		for i := range a {
			a[i] *= b[i]
		}
	case opDiv:
		for i := range a {
			a[i] /= b[i]
		}
	}
}

func vectorizedKernel[T tensor.DType](dst, a, b []T, op binOp) {
	switch op {
	case opAdd:
		for i := range dst {
			dst[i] = a[i] + b[i]
		}
	case opSub:
		for i := range dst {
			dst[i] = a[i] - b[i]
		}
	case opMul:
		for i := range dst {
			dst[i] = a[i] * b[i]
		}
	case opDiv:
		for i := range dst {
			dst[i] = a[i] / b[i]
		}
	}
}

func broadcastKernel[T tensor.DType](dst, a, b []T, aShape, bShape, outShape tensor.Shape, op binOp) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	switch op {
	case opAdd:
		for i := range dst {
			dst[i] = a[flatIndex(i, outStrides, aStrides)] + b[flatIndex(i, outStrides, bStrides)]
		}
	case opSub:
		for i := range dst {
			dst[i] = a[flatIndex(i, outStrides, aStrides)] - b[flatIndex(i, outStrides, bStrides)]
		}
	case opMul:
		for i := range dst {
			dst[i] = a[flatIndex(i, outStrides, aStrides)] * b[flatIndex(i, outStrides, bStrides)]
		}
	case opDiv:
		for i := range dst {
			dst[i] = a[flatIndex(i, outStrides, aStrides)] / b[flatIndex(i, outStrides, bStrides)]
		}
	}
}

// broadcastStrides computes strides for walking inShape as if it were
// expanded to outShape. Broadcast and left-padded dimensions get stride 0
// so every output coordinate along them reads the same input element.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// flatIndex maps a flat output index to the flat index in a source array
// described by broadcast-adjusted strides.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	idx := 0
	for i := 0; i < len(outStrides); i++ {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		idx += coord * inStrides[i]
	}
	return idx
}
