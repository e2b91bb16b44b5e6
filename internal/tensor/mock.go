// Package tensor provides the core tensor types and operations for the
// Mirage video diffusion engine.
package tensor

import (
	"fmt"
	"math"
)

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a simple backend for testing.
// It implements all operations naively for correctness verification.
type MockBackend struct{}

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return CPU
}

// Add performs element-wise addition with broadcasting.
func (m *MockBackend) Add(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (m *MockBackend) Sub(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (m *MockBackend) Mul(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (m *MockBackend) Div(a, b *RawTensor) *RawTensor {
	return m.elementWise(a, b, func(x, y float64) float64 { return x / y })
}

// elementWise performs element-wise operations with broadcasting.
func (m *MockBackend) elementWise(a, b *RawTensor, op func(float64, float64) float64) *RawTensor {
	// Broadcast shapes
	outShape, _, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(err)
	}

	// Create output tensor
	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	// Perform operation (naive implementation)
	numElements := outShape.NumElements()

	// Convert to float64 for generic processing
	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := m.toFloat64Slice(result)

	for i := 0; i < numElements; i++ {
		aIdx := m.broadcastIndex(i, outShape, a.Shape())
		bIdx := m.broadcastIndex(i, outShape, b.Shape())

		resultData[i] = op(aData[aIdx], bData[bIdx])
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// MulScalar multiplies each element by a scalar.
func (m *MockBackend) MulScalar(x *RawTensor, scalar any) *RawTensor {
	s := scalarToFloat64(scalar)
	return m.unary(x, func(v float64) float64 { return v * s })
}

// AddScalar adds a scalar to each element.
func (m *MockBackend) AddScalar(x *RawTensor, scalar any) *RawTensor {
	s := scalarToFloat64(scalar)
	return m.unary(x, func(v float64) float64 { return v + s })
}

// SubScalar subtracts a scalar from each element.
func (m *MockBackend) SubScalar(x *RawTensor, scalar any) *RawTensor {
	s := scalarToFloat64(scalar)
	return m.unary(x, func(v float64) float64 { return v - s })
}

// DivScalar divides each element by a scalar.
func (m *MockBackend) DivScalar(x *RawTensor, scalar any) *RawTensor {
	s := scalarToFloat64(scalar)
	return m.unary(x, func(v float64) float64 { return v / s })
}

// MatMul performs matrix multiplication.
func (m *MockBackend) MatMul(a, b *RawTensor) *RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	// Only support 2D for now
	if len(aShape) != 2 || len(bShape) != 2 {
		panic("MatMul only supports 2D tensors in mock backend")
	}

	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("incompatible shapes for MatMul: %v @ %v", aShape, bShape))
	}

	M, K := aShape[0], aShape[1]
	N := bShape[1]

	outShape := Shape{M, N}
	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := m.toFloat64Slice(result)

	// Naive matrix multiplication
	for i := 0; i < M; i++ {
		for j := 0; j < N; j++ {
			sum := 0.0
			for k := 0; k < K; k++ {
				sum += aData[i*K+k] * bData[k*N+j]
			}
			resultData[i*N+j] = sum
		}
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
func (m *MockBackend) BatchMatMul(a, b *RawTensor) *RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != len(bShape) || (len(aShape) != 3 && len(aShape) != 4) {
		panic(fmt.Sprintf("BatchMatMul requires matching 3D or 4D tensors, got %v @ %v", aShape, bShape))
	}

	ndim := len(aShape)
	batch := 1
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("BatchMatMul batch dimensions mismatch: %v @ %v", aShape, bShape))
		}
		batch *= aShape[i]
	}

	M, K := aShape[ndim-2], aShape[ndim-1]
	if bShape[ndim-2] != K {
		panic(fmt.Sprintf("incompatible shapes for BatchMatMul: %v @ %v", aShape, bShape))
	}
	N := bShape[ndim-1]

	outShape := make(Shape, ndim)
	copy(outShape, aShape[:ndim-2])
	outShape[ndim-2] = M
	outShape[ndim-1] = N

	result, err := NewRaw(outShape, a.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	aData := m.toFloat64Slice(a)
	bData := m.toFloat64Slice(b)
	resultData := m.toFloat64Slice(result)

	for bi := 0; bi < batch; bi++ {
		aOff := bi * M * K
		bOff := bi * K * N
		cOff := bi * M * N
		for i := 0; i < M; i++ {
			for j := 0; j < N; j++ {
				sum := 0.0
				for k := 0; k < K; k++ {
					sum += aData[aOff+i*K+k] * bData[bOff+k*N+j]
				}
				resultData[cOff+i*N+j] = sum
			}
		}
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Conv2D performs a strided 2D convolution.
func (m *MockBackend) Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor {
	inShape := input.Shape()
	kShape := kernel.Shape()

	if len(inShape) != 4 || len(kShape) != 4 {
		panic(fmt.Sprintf("Conv2D requires 4D input and kernel, got %v and %v", inShape, kShape))
	}

	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kC, kH, kW := kShape[0], kShape[1], kShape[2], kShape[3]

	if inC != kC {
		panic(fmt.Sprintf("Conv2D channel mismatch: input has %d, kernel expects %d", inC, kC))
	}

	outH := (inH+2*padding-kH)/stride + 1
	outW := (inW+2*padding-kW)/stride + 1

	outShape := Shape{batch, outC, outH, outW}
	result, err := NewRaw(outShape, input.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	inData := m.toFloat64Slice(input)
	kData := m.toFloat64Slice(kernel)
	outData := m.toFloat64Slice(result)

	for n := 0; n < batch; n++ {
		for oc := 0; oc < outC; oc++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := 0.0
					for ic := 0; ic < inC; ic++ {
						for ky := 0; ky < kH; ky++ {
							for kx := 0; kx < kW; kx++ {
								iy := oh*stride + ky - padding
								ix := ow*stride + kx - padding
								if iy < 0 || iy >= inH || ix < 0 || ix >= inW {
									continue
								}
								inIdx := ((n*inC+ic)*inH+iy)*inW + ix
								kIdx := ((oc*kC+ic)*kH+ky)*kW + kx
								sum += inData[inIdx] * kData[kIdx]
							}
						}
					}
					outData[((n*outC+oc)*outH+oh)*outW+ow] = sum
				}
			}
		}
	}

	m.fromFloat64Slice(outData, result)
	return result
}

// Exp computes the exponential of each element.
func (m *MockBackend) Exp(x *RawTensor) *RawTensor {
	return m.unary(x, math.Exp)
}

// Log computes the natural logarithm of each element.
func (m *MockBackend) Log(x *RawTensor) *RawTensor {
	return m.unary(x, math.Log)
}

// Sqrt computes the square root of each element.
func (m *MockBackend) Sqrt(x *RawTensor) *RawTensor {
	return m.unary(x, math.Sqrt)
}

// Rsqrt computes the reciprocal square root of each element.
func (m *MockBackend) Rsqrt(x *RawTensor) *RawTensor {
	return m.unary(x, func(v float64) float64 { return 1.0 / math.Sqrt(v) })
}

// Cos computes the cosine of each element.
func (m *MockBackend) Cos(x *RawTensor) *RawTensor {
	return m.unary(x, math.Cos)
}

// Sin computes the sine of each element.
func (m *MockBackend) Sin(x *RawTensor) *RawTensor {
	return m.unary(x, math.Sin)
}

// unary applies op to every element.
func (m *MockBackend) unary(x *RawTensor, op func(float64) float64) *RawTensor {
	result, err := NewRaw(x.Shape(), x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	resultData := m.toFloat64Slice(result)
	for i, v := range data {
		resultData[i] = op(v)
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Softmax applies softmax along a dimension with max subtraction.
func (m *MockBackend) Softmax(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	result, err := NewRaw(shape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	resultData := m.toFloat64Slice(result)

	// Iterate over all slices along dim.
	dimSize := shape[dim]
	strides := shape.ComputeStrides()
	dimStride := strides[dim]
	outer := x.NumElements() / dimSize

	for o := 0; o < outer; o++ {
		// Base flat index of this slice: split o into (pre, post) parts
		// around dim.
		pre := o / dimStride
		post := o % dimStride
		base := pre*dimSize*dimStride + post

		maxVal := math.Inf(-1)
		for i := 0; i < dimSize; i++ {
			if v := data[base+i*dimStride]; v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for i := 0; i < dimSize; i++ {
			e := math.Exp(data[base+i*dimStride] - maxVal)
			resultData[base+i*dimStride] = e
			sum += e
		}

		for i := 0; i < dimSize; i++ {
			resultData[base+i*dimStride] /= sum
		}
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Sum reduces the tensor to a scalar (empty shape).
func (m *MockBackend) Sum(x *RawTensor) *RawTensor {
	result, err := NewRaw(Shape{}, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	sum := 0.0
	for _, v := range m.toFloat64Slice(x) {
		sum += v
	}

	m.fromFloat64Slice([]float64{sum}, result)
	return result
}

// SumDim sums along a dimension.
func (m *MockBackend) SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	return m.reduceDim(x, dim, keepDim, false)
}

// MeanDim averages along a dimension.
func (m *MockBackend) MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	return m.reduceDim(x, dim, keepDim, true)
}

func (m *MockBackend) reduceDim(x *RawTensor, dim int, keepDim, mean bool) *RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	outShape := make(Shape, 0, len(shape))
	for i, d := range shape {
		if i == dim {
			if keepDim {
				outShape = append(outShape, 1)
			}
			continue
		}
		outShape = append(outShape, d)
	}

	result, err := NewRaw(outShape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	resultData := m.toFloat64Slice(result)

	dimSize := shape[dim]
	strides := shape.ComputeStrides()
	dimStride := strides[dim]
	outer := x.NumElements() / dimSize

	for o := 0; o < outer; o++ {
		pre := o / dimStride
		post := o % dimStride
		base := pre*dimSize*dimStride + post

		sum := 0.0
		for i := 0; i < dimSize; i++ {
			sum += data[base+i*dimStride]
		}
		if mean {
			sum /= float64(dimSize)
		}
		resultData[o] = sum
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Reshape returns a tensor with the same data but different shape.
func (m *MockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	copy(result.Data(), t.Data())
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
func (m *MockBackend) Transpose(t *RawTensor, axes ...int) *RawTensor {
	shape := t.Shape()

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, len(shape))
		for i := range axes {
			axes[i] = len(shape) - 1 - i
		}
	}

	// Validate axes
	if len(axes) != len(shape) {
		panic(fmt.Sprintf("axes length %d doesn't match tensor dimensions %d", len(axes), len(shape)))
	}

	// Compute new shape
	newShape := make(Shape, len(shape))
	for i, axis := range axes {
		if axis < 0 || axis >= len(shape) {
			panic(fmt.Sprintf("axis %d out of bounds for tensor with %d dimensions", axis, len(shape)))
		}
		newShape[i] = shape[axis]
	}

	result, err := NewRaw(newShape, t.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	// Transpose data (naive implementation)
	tData := m.toFloat64Slice(t)
	resultData := m.toFloat64Slice(result)

	oldStrides := shape.ComputeStrides()
	newStrides := newShape.ComputeStrides()

	for i := 0; i < t.NumElements(); i++ {
		// Convert flat index to multi-dimensional indices
		indices := make([]int, len(shape))
		temp := i
		for d := 0; d < len(newShape); d++ {
			indices[d] = temp / newStrides[d]
			temp %= newStrides[d]
		}

		// Map through the permutation back to the source
		srcIdx := 0
		for d, axis := range axes {
			srcIdx += indices[d] * oldStrides[axis]
		}

		resultData[i] = tData[srcIdx]
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Cat concatenates tensors along a dimension.
func (m *MockBackend) Cat(tensors []*RawTensor, dim int) *RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	first := tensors[0]
	shape := first.Shape()
	dim = shape.NormalizeDim(dim)

	catSize := 0
	for _, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != len(shape) {
			panic(fmt.Sprintf("cat: rank mismatch: %v vs %v", shape, tShape))
		}
		for i := range shape {
			if i != dim && tShape[i] != shape[i] {
				panic(fmt.Sprintf("cat: shape mismatch at dim %d: %v vs %v", i, shape, tShape))
			}
		}
		catSize += tShape[dim]
	}

	outShape := shape.Clone()
	outShape[dim] = catSize

	result, err := NewRaw(outShape, first.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	resultData := m.toFloat64Slice(result)

	// Copy block by block: outer = product of dims before dim,
	// inner = product of dims after dim.
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	offset := 0
	for _, t := range tensors {
		tData := m.toFloat64Slice(t)
		tDim := t.Shape()[dim]
		for o := 0; o < outer; o++ {
			srcBase := o * tDim * inner
			dstBase := o*catSize*inner + offset*inner
			copy(resultData[dstBase:dstBase+tDim*inner], tData[srcBase:srcBase+tDim*inner])
		}
		offset += tDim
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Narrow returns the slice [start, start+length) along a dimension.
func (m *MockBackend) Narrow(x *RawTensor, dim, start, length int) *RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	if length <= 0 || start < 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dim %d of size %d",
			start, start+length, dim, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length

	result, err := NewRaw(outShape, x.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	data := m.toFloat64Slice(x)
	resultData := m.toFloat64Slice(result)

	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	for o := 0; o < outer; o++ {
		srcBase := (o*shape[dim] + start) * inner
		dstBase := o * length * inner
		copy(resultData[dstBase:dstBase+length*inner], data[srcBase:srcBase+length*inner])
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Chunk splits the tensor into n equal parts along a dimension.
func (m *MockBackend) Chunk(x *RawTensor, n, dim int) []*RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	if n <= 0 {
		panic(fmt.Sprintf("chunk: n must be positive, got %d", n))
	}
	if shape[dim]%n != 0 {
		panic(fmt.Sprintf("chunk: dimension %d of size %d not divisible by %d", dim, shape[dim], n))
	}

	partSize := shape[dim] / n
	parts := make([]*RawTensor, n)
	for i := 0; i < n; i++ {
		parts[i] = m.Narrow(x, dim, i*partSize, partSize)
	}
	return parts
}

// Unsqueeze adds a dimension of size 1 at the specified position.
func (m *MockBackend) Unsqueeze(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	// dim may be ndim (append at the end); negative counts from there
	if dim < 0 {
		dim += ndim + 1
	}
	if dim < 0 || dim > ndim {
		panic(fmt.Sprintf("unsqueeze: dim %d out of range for %dD tensor", dim, ndim))
	}

	newShape := make(Shape, 0, ndim+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)

	return m.Reshape(x, newShape)
}

// Squeeze removes a dimension of size 1 at the specified position.
func (m *MockBackend) Squeeze(x *RawTensor, dim int) *RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, expected 1", dim, shape[dim]))
	}

	newShape := make(Shape, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)

	return m.Reshape(x, newShape)
}

// Embedding looks up rows of weight by integer indices.
func (m *MockBackend) Embedding(weight, indices *RawTensor) *RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [vocab, dim], got %v", wShape))
	}

	vocab, embDim := wShape[0], wShape[1]

	idxShape := indices.Shape()
	outShape := make(Shape, 0, len(idxShape)+1)
	outShape = append(outShape, idxShape...)
	outShape = append(outShape, embDim)

	result, err := NewRaw(outShape, weight.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	wData := m.toFloat64Slice(weight)
	idxData := m.toFloat64Slice(indices)
	resultData := m.toFloat64Slice(result)

	for i, fIdx := range idxData {
		idx := int(fIdx)
		if idx < 0 || idx >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, vocab))
		}
		copy(resultData[i*embDim:(i+1)*embDim], wData[idx*embDim:(idx+1)*embDim])
	}

	m.fromFloat64Slice(resultData, result)
	return result
}

// Cast converts the tensor to a different dtype.
func (m *MockBackend) Cast(x *RawTensor, dtype DataType) *RawTensor {
	result, err := NewRaw(x.Shape(), dtype, m.Device())
	if err != nil {
		panic(err)
	}

	m.fromFloat64Slice(m.toFloat64Slice(x), result)
	return result
}

// Helper functions

func (m *MockBackend) toFloat64Slice(t *RawTensor) []float64 {
	switch t.DType() {
	case Float32:
		src := t.AsFloat32()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	case Float64:
		return t.AsFloat64()
	case Int32:
		src := t.AsInt32()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	case Int64:
		src := t.AsInt64()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst
	default:
		panic(fmt.Sprintf("unsupported dtype: %s", t.DType()))
	}
}

func (m *MockBackend) fromFloat64Slice(src []float64, t *RawTensor) {
	switch t.DType() {
	case Float32:
		dst := t.AsFloat32()
		for i, v := range src {
			dst[i] = float32(v)
		}
	case Float64:
		copy(t.AsFloat64(), src)
	case Int32:
		dst := t.AsInt32()
		for i, v := range src {
			dst[i] = int32(v)
		}
	case Int64:
		dst := t.AsInt64()
		for i, v := range src {
			dst[i] = int64(v)
		}
	}
}

func (m *MockBackend) broadcastIndex(flatIdx int, outShape, inShape Shape) int {
	// Convert flat index to multi-dimensional indices in output shape
	outStrides := outShape.ComputeStrides()
	indices := make([]int, len(outShape))

	temp := flatIdx
	for i := 0; i < len(outShape); i++ {
		indices[i] = temp / outStrides[i]
		temp %= outStrides[i]
	}

	// Map to input shape (accounting for broadcasting)
	inStrides := inShape.ComputeStrides()
	inIdx := 0

	offset := len(outShape) - len(inShape)
	for i := 0; i < len(inShape); i++ {
		outDimIdx := indices[offset+i]
		inDim := inShape[i]

		// If input dimension is 1, always use index 0 (broadcasting)
		if inDim == 1 {
			outDimIdx = 0
		}

		inIdx += outDimIdx * inStrides[i]
	}

	return inIdx
}

// scalarToFloat64 converts a scalar of any supported numeric type.
func scalarToFloat64(scalar any) float64 {
	switch s := scalar.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	case int32:
		return float64(s)
	case int64:
		return float64(s)
	default:
		panic(fmt.Sprintf("unsupported scalar type: %T", scalar))
	}
}
