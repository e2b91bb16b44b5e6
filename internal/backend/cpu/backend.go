// Package cpu implements the CPU compute backend for the Mirage tensor engine.
//
// Element-wise kernels are generic over the supported data types and the
// heavy operations (matrix multiplication, convolution, batched attention
// products) fan out over a worker pool sized from the host CPU count.
package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/parallel"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	pool   parallel.Config
}

// New creates a new CPU backend with a worker pool sized from the host.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		pool:   parallel.DefaultConfig(),
	}
}

// NewSequential creates a CPU backend with parallel execution disabled.
// Useful for deterministic profiling and small test tensors.
func NewSequential() *CPUBackend {
	cfg := parallel.DefaultConfig()
	cfg.Enabled = false
	return &CPUBackend{
		device: tensor.CPU,
		pool:   cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(a, b, opAdd, "add")
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(a, b, opSub, "sub")
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(a, b, opMul, "mul")
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(a, b, opDiv, "div")
}

// binary drives the four element-wise arithmetic operations.
//
// Same-shape operands take a vectorized fast path; when the left operand
// holds the only reference to its buffer the update happens in place and
// the operand itself is returned. Mismatched shapes fall back to the
// stride-based broadcast path.
func (cpu *CPUBackend) binary(a, b *tensor.RawTensor, op binOp, name string) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		// Inplace needs exclusive ownership, and a self-operand (x op x)
		// must not overwrite values still being read.
		if a.IsUnique() && a != b {
			binaryInplace(a, b, op, name)
			return a
		}
		result := newResult(outShape, a.DType(), cpu.device, name)
		binaryVectorized(result, a, b, op, name)
		return result
	}

	result := newResult(outShape, a.DType(), cpu.device, name)
	binaryBroadcast(result, a, b, outShape, op, name)
	return result
}

// Reshape returns a tensor with the same data but a different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result := newResult(newShape, t.DType(), t.Device(), "reshape")
	copy(result.Data(), t.Data())
	return result
}

// Transpose permutes the tensor's dimensions.
//
// With no axes given all dimensions are reversed. Otherwise axes must be
// a permutation of [0, ndim) and output dimension i takes its extent and
// data from input dimension axes[i].
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		outShape[i] = shape[ax]
	}

	result := newResult(outShape, t.DType(), t.Device(), "transpose")

	switch t.DType() {
	case tensor.Float32:
		permuteKernel(result.AsFloat32(), t.AsFloat32(), shape, outShape, axes)
	case tensor.Float64:
		permuteKernel(result.AsFloat64(), t.AsFloat64(), shape, outShape, axes)
	case tensor.Int32:
		permuteKernel(result.AsInt32(), t.AsInt32(), shape, outShape, axes)
	case tensor.Int64:
		permuteKernel(result.AsInt64(), t.AsInt64(), shape, outShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

// permuteKernel copies src into dst so that output dimension d walks
// source dimension axes[d].
func permuteKernel[T tensor.DType](dst, src []T, srcShape, outShape tensor.Shape, axes []int) {
	srcStrides := srcShape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	for i := range dst {
		rem := i
		srcIdx := 0
		for d := 0; d < len(outShape); d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			srcIdx += coord * srcStrides[axes[d]]
		}
		dst[i] = src[srcIdx]
	}
}

// newResult allocates the output tensor for an operation, panicking with
// the operation name on failure.
func newResult(shape tensor.Shape, dtype tensor.DataType, device tensor.Device, name string) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}
	return result
}
