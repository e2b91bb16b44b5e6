package cpu

import (
	"testing"

	"github.com/mirage-ml/mirage/internal/tensor"
)

func newIndexTensor(t *testing.T, data []int32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Int32, tensor.CPU)
	if err != nil {
		t.Fatalf("Failed to create index tensor: %v", err)
	}
	copy(raw.AsInt32(), data)
	return raw
}

func TestEmbeddingLookup(t *testing.T) {
	backend := New()

	// 4 embeddings of dimension 3.
	weight := rawFromFloat32(t, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12,
	}, tensor.Shape{4, 3})

	indices := newIndexTensor(t, []int32{0, 2, 1}, tensor.Shape{3})

	result := backend.Embedding(weight, indices)

	if !result.Shape().Equal(tensor.Shape{3, 3}) {
		t.Fatalf("Expected shape [3, 3], got %v", result.Shape())
	}

	expected := []float32{
		1, 2, 3,
		7, 8, 9,
		4, 5, 6,
	}
	if !float32SliceEqual(result.AsFloat32(), expected) {
		t.Errorf("Embedding failed: got %v, expected %v", result.AsFloat32(), expected)
	}
}

// TestEmbedding2DIndices mirrors the per-frame action lookup: one index
// per (batch, frame) position.
func TestEmbedding2DIndices(t *testing.T) {
	backend := New()

	weight := rawFromFloat32(t, []float32{
		0, 0,
		1, 10,
		2, 20,
	}, tensor.Shape{3, 2})

	indices := newIndexTensor(t, []int32{
		0, 1,
		2, 2,
	}, tensor.Shape{2, 2})

	result := backend.Embedding(weight, indices)

	if !result.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("Expected shape [2, 2, 2], got %v", result.Shape())
	}

	expected := []float32{
		0, 0,
		1, 10,
		2, 20,
		2, 20,
	}
	if !float32SliceEqual(result.AsFloat32(), expected) {
		t.Errorf("Embedding failed: got %v, expected %v", result.AsFloat32(), expected)
	}
}

func TestEmbeddingRepeatedIndices(t *testing.T) {
	backend := New()

	weight := rawFromFloat32(t, []float32{
		5, 6,
		7, 8,
	}, tensor.Shape{2, 2})

	indices := newIndexTensor(t, []int32{1, 1, 1}, tensor.Shape{3})

	result := backend.Embedding(weight, indices)

	expected := []float32{7, 8, 7, 8, 7, 8}
	if !float32SliceEqual(result.AsFloat32(), expected) {
		t.Errorf("Repeated lookup failed: got %v", result.AsFloat32())
	}
}

func TestEmbeddingOutOfBounds(t *testing.T) {
	backend := New()

	weight := rawFromFloat32(t, make([]float32, 6), tensor.Shape{2, 3})
	indices := newIndexTensor(t, []int32{0, 2}, tensor.Shape{2})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for out of range index")
		}
	}()

	backend.Embedding(weight, indices)
}

func TestEmbeddingRequiresInt32(t *testing.T) {
	backend := New()

	weight := rawFromFloat32(t, make([]float32, 6), tensor.Shape{2, 3})
	badIndices := rawFromFloat32(t, []float32{0, 1}, tensor.Shape{2})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for float indices")
		}
	}()

	backend.Embedding(weight, badIndices)
}

func TestEmbeddingRequires2DWeight(t *testing.T) {
	backend := New()

	weight := rawFromFloat32(t, make([]float32, 8), tensor.Shape{2, 2, 2})
	indices := newIndexTensor(t, []int32{0}, tensor.Shape{1})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for 3D weight")
		}
	}()

	backend.Embedding(weight, indices)
}
