package action

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// EncodeBatch packs per-frame actions into the tensors the action embedder
// consumes: a [batch, frames, groups] int32 index tensor and a
// [batch, frames, continuousDims] float32 tensor.
//
// Every sequence must have the same number of frames and every action must
// validate against the space. A space without discrete groups yields a nil
// index tensor; one without continuous components yields a nil continuous
// tensor.
func EncodeBatch[B tensor.Backend](space Space, steps [][]Action, backend B) (*tensor.Tensor[int32, B], *tensor.Tensor[float32, B], error) {
	if err := space.Check(); err != nil {
		return nil, nil, fmt.Errorf("invalid action space: %w", err)
	}
	if len(steps) == 0 {
		return nil, nil, fmt.Errorf("encode actions: empty batch")
	}
	frames := len(steps[0])
	if frames == 0 {
		return nil, nil, fmt.Errorf("encode actions: sequence 0 is empty")
	}
	for b, seq := range steps {
		if len(seq) != frames {
			return nil, nil, fmt.Errorf("encode actions: sequence %d has %d frames, want %d", b, len(seq), frames)
		}
	}

	batch := len(steps)
	groups := len(space.Groups)

	idxData := make([]int32, batch*frames*groups)
	contData := make([]float32, batch*frames*space.ContinuousDims)

	for b, seq := range steps {
		for t, act := range seq {
			if err := space.Validate(act); err != nil {
				return nil, nil, fmt.Errorf("invalid action at batch %d frame %d: %w", b, t, err)
			}

			base := (b*frames + t) * groups
			for g, idx := range act.Indices {
				idxData[base+g] = int32(idx)
			}

			cbase := (b*frames + t) * space.ContinuousDims
			copy(contData[cbase:cbase+space.ContinuousDims], act.Continuous)
		}
	}

	var indices *tensor.Tensor[int32, B]
	if groups > 0 {
		t, err := tensor.FromSlice[int32, B](idxData, tensor.Shape{batch, frames, groups}, backend)
		if err != nil {
			return nil, nil, fmt.Errorf("encode actions: index tensor: %w", err)
		}
		indices = t
	}

	var continuous *tensor.Tensor[float32, B]
	if space.ContinuousDims > 0 {
		t, err := tensor.FromSlice[float32, B](contData, tensor.Shape{batch, frames, space.ContinuousDims}, backend)
		if err != nil {
			return nil, nil, fmt.Errorf("encode actions: continuous tensor: %w", err)
		}
		continuous = t
	}

	return indices, continuous, nil
}
