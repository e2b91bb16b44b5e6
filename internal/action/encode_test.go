package action

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mirage-ml/mirage/internal/backend/cpu"
	"github.com/mirage-ml/mirage/internal/tensor"
)

func TestEncodeBatch(t *testing.T) {
	backend := cpu.New()
	space := DefaultSpace()

	steps := [][]Action{
		{
			{Indices: []int{MovementForward, InteractOff}, Continuous: []float32{0.1, 0.2}},
			{Indices: []int{MovementLeft, InteractOn}, Continuous: []float32{-0.5, 0}},
		},
		{
			{Indices: []int{MovementNone, InteractOff}, Continuous: []float32{0, 0}},
			{Indices: []int{MovementBack, InteractOn}, Continuous: []float32{2, -2}},
		},
	}

	indices, continuous, err := EncodeBatch(space, steps, backend)
	if err != nil {
		t.Fatalf("EncodeBatch failed: %v", err)
	}

	if !indices.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("index shape = %v, want [2 2 2]", indices.Shape())
	}
	wantIdx := []int32{
		1, 0,
		3, 1,
		0, 0,
		2, 1,
	}
	if diff := cmp.Diff(wantIdx, indices.Data()); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}

	if !continuous.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("continuous shape = %v, want [2 2 2]", continuous.Shape())
	}
	wantCont := []float32{0.1, 0.2, -0.5, 0, 0, 0, 2, -2}
	if diff := cmp.Diff(wantCont, continuous.Data()); diff != "" {
		t.Errorf("continuous mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeBatchNoContinuous(t *testing.T) {
	backend := cpu.New()
	space := Space{Groups: []Group{{Name: "button", Size: 3}}}

	steps := [][]Action{{
		{Indices: []int{2}},
		{Indices: []int{0}},
	}}

	indices, continuous, err := EncodeBatch(space, steps, backend)
	if err != nil {
		t.Fatalf("EncodeBatch failed: %v", err)
	}
	if continuous != nil {
		t.Error("expected nil continuous tensor for a purely discrete space")
	}
	if !indices.Shape().Equal(tensor.Shape{1, 2, 1}) {
		t.Errorf("index shape = %v, want [1 2 1]", indices.Shape())
	}
	if diff := cmp.Diff([]int32{2, 0}, indices.Data()); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeBatchErrors(t *testing.T) {
	backend := cpu.New()
	space := DefaultSpace()
	ok := space.Zero()

	t.Run("EmptyBatch", func(t *testing.T) {
		if _, _, err := EncodeBatch(space, nil, backend); err == nil {
			t.Error("expected error for empty batch")
		}
	})

	t.Run("EmptySequence", func(t *testing.T) {
		if _, _, err := EncodeBatch(space, [][]Action{{}}, backend); err == nil {
			t.Error("expected error for empty sequence")
		}
	})

	t.Run("RaggedSequences", func(t *testing.T) {
		steps := [][]Action{
			{ok, ok},
			{ok},
		}
		_, _, err := EncodeBatch(space, steps, backend)
		if err == nil || !strings.Contains(err.Error(), "sequence 1") {
			t.Errorf("err = %v, want ragged-sequence error naming sequence 1", err)
		}
	})

	t.Run("InvalidAction", func(t *testing.T) {
		bad := Action{Indices: []int{9, 0}, Continuous: []float32{0, 0}}
		steps := [][]Action{
			{ok, ok},
			{bad, ok},
		}
		_, _, err := EncodeBatch(space, steps, backend)
		if err == nil || !strings.Contains(err.Error(), "batch 1 frame 0") {
			t.Errorf("err = %v, want validation error locating batch 1 frame 0", err)
		}
	})

	t.Run("MalformedSpace", func(t *testing.T) {
		badSpace := Space{Groups: []Group{{Name: "movement", Size: 0}}}
		if _, _, err := EncodeBatch(badSpace, [][]Action{{ok}}, backend); err == nil {
			t.Error("expected error for malformed space")
		}
	})
}
