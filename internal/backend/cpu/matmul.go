package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/parallel"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
// Output rows are computed in parallel across the worker pool.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := newResult(tensor.Shape{m, n}, a.DType(), cpu.device, "matmul")

	switch a.DType() {
	case tensor.Float32:
		matmulKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, cpu.pool)
	case tensor.Float64:
		matmulKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n, cpu.pool)
	case tensor.Int32:
		matmulKernel(result.AsInt32(), a.AsInt32(), b.AsInt32(), m, k, n, cpu.pool)
	case tensor.Int64:
		matmulKernel(result.AsInt64(), a.AsInt64(), b.AsInt64(), m, k, n, cpu.pool)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}

// matmulKernel computes C[i,j] = sum_k A[i,k] * B[k,j] one output row at
// a time. The inner loops walk rows of A and B contiguously.
func matmulKernel[T tensor.DType](c, a, b []T, m, k, n int, pool parallel.Config) {
	parallel.For(m, func(i int) {
		rowA := a[i*k : (i+1)*k]
		rowC := c[i*n : (i+1)*n]
		for j := range rowC {
			rowC[j] = 0
		}
		for kk, av := range rowA {
			rowB := b[kk*n : (kk+1)*n]
			for j, bv := range rowB {
				rowC[j] += av * bv
			}
		}
	}, pool)
}
