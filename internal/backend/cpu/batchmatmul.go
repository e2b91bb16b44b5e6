package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/parallel"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// BatchMatMul performs batched matrix multiplication.
// Supports 3D and 4D tensors with batch dimensions.
//
// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// The last two dimensions are treated as matrix dimensions and all
// leading dimensions must match. The batch*row iteration space is
// computed in parallel, which covers the batch*head products of
// attention.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()
	ndim := len(aShape)

	if ndim < 3 {
		panic(fmt.Sprintf("batchmatmul: inputs must be at least 3D, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("batchmatmul: dimension mismatch, got %dD and %dD", ndim, len(bShape)))
	}

	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("batchmatmul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
		}
	}

	m := aShape[ndim-2]
	k1 := aShape[ndim-1]
	k2 := bShape[ndim-2]
	n := bShape[ndim-1]

	if k1 != k2 {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch: %d vs %d", k1, k2))
	}

	batchSize := 1
	for i := 0; i < ndim-2; i++ {
		batchSize *= aShape[i]
	}

	outShape := make(tensor.Shape, ndim)
	copy(outShape, aShape[:ndim-2])
	outShape[ndim-2] = m
	outShape[ndim-1] = n

	result := newResult(outShape, a.DType(), cpu.device, "batchmatmul")

	switch a.DType() {
	case tensor.Float32:
		batchMatmulKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), batchSize, m, k1, n, cpu.pool)
	case tensor.Float64:
		batchMatmulKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), batchSize, m, k1, n, cpu.pool)
	default:
		panic(fmt.Sprintf("batchmatmul: unsupported dtype %s (only float32/float64 supported)", a.DType()))
	}

	return result
}

func batchMatmulKernel[T floatType](c, a, b []T, batch, m, k, n int, pool parallel.Config) {
	parallel.ForBatch(batch, m, func(bi, i int) {
		aOff := bi * m * k
		bOff := bi * k * n
		cOff := bi * m * n

		rowA := a[aOff+i*k : aOff+(i+1)*k]
		rowC := c[cOff+i*n : cOff+(i+1)*n]
		for j := range rowC {
			rowC[j] = 0
		}
		for kk, av := range rowA {
			rowB := b[bOff+kk*n : bOff+(kk+1)*n]
			for j, bv := range rowB {
				rowC[j] += av * bv
			}
		}
	}, pool)
}
