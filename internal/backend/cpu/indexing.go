package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Embedding looks up rows of weight by integer indices.
//
// weight must be 2D [num_embeddings, embedding_dim] and indices must be
// int32. The output has shape [...indices.shape, embedding_dim].
//
// The action conditioner and the noise-level embedder both resolve their
// discrete inputs through this lookup.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}

	weightShape := weight.Shape()
	if len(weightShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D, got shape %v", weightShape))
	}

	numEmbeddings := weightShape[0]
	embeddingDim := weightShape[1]

	indicesShape := indices.Shape()
	outputShape := make(tensor.Shape, len(indicesShape)+1)
	copy(outputShape, indicesShape)
	outputShape[len(outputShape)-1] = embeddingDim

	result := newResult(outputShape, weight.DType(), cpu.device, "embedding")

	indicesData := indices.AsInt32()
	numIndices := indices.NumElements()

	switch weight.DType() {
	case tensor.Float32:
		embeddingKernel(result.AsFloat32(), weight.AsFloat32(), indicesData, numIndices, numEmbeddings, embeddingDim)
	case tensor.Float64:
		embeddingKernel(result.AsFloat64(), weight.AsFloat64(), indicesData, numIndices, numEmbeddings, embeddingDim)
	default:
		panic(fmt.Sprintf("embedding: unsupported weight dtype %s", weight.DType()))
	}

	return result
}

func embeddingKernel[T floatType](dst, weight []T, indices []int32, numIndices, numEmbeddings, embeddingDim int) {
	for i := 0; i < numIndices; i++ {
		idx := int(indices[i])
		if idx < 0 || idx >= numEmbeddings {
			panic(fmt.Sprintf("embedding: index %d out of bounds [0, %d)", idx, numEmbeddings))
		}

		srcOffset := idx * embeddingDim
		dstOffset := i * embeddingDim
		copy(dst[dstOffset:dstOffset+embeddingDim], weight[srcOffset:srcOffset+embeddingDim])
	}
}
