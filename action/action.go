// Package action provides the control vocabulary Mirage models are
// conditioned on.
//
// This package wraps the internal action implementation and exports a clean
// public API for describing an action space, recording per-frame actions,
// and packing them into the tensors the model consumes.
//
// Example usage:
//
//	import (
//	    "github.com/mirage-ml/mirage/action"
//	    "github.com/mirage-ml/mirage/backend/cpu"
//	)
//
//	space := action.DefaultSpace()
//
//	// One sequence of three frames: walk forward, then turn the camera
//	seq := []action.Action{
//	    {Indices: []int{action.MovementForward, action.InteractOff}, Continuous: []float32{0, 0}},
//	    {Indices: []int{action.MovementForward, action.InteractOff}, Continuous: []float32{0, 0.5}},
//	    {Indices: []int{action.MovementNone, action.InteractOff}, Continuous: []float32{0, 0.5}},
//	}
//
//	backend := cpu.New()
//	idx, cont, err := action.EncodeBatch(space, [][]action.Action{seq}, backend)
package action

import (
	"github.com/mirage-ml/mirage/internal/action"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Movement categories of the default space. Exactly one is active per
// frame; MovementNone is the rest state.
const (
	MovementNone    = action.MovementNone
	MovementForward = action.MovementForward
	MovementBack    = action.MovementBack
	MovementLeft    = action.MovementLeft
	MovementRight   = action.MovementRight
)

// Interaction states of the default space.
const (
	InteractOff = action.InteractOff
	InteractOn  = action.InteractOn
)

// Group is one mutually-exclusive set of discrete control categories. An
// action selects exactly one category index in [0, Size) per group.
type Group = action.Group

// Space describes the full control vocabulary: the discrete groups and the
// number of continuous components (camera deltas and the like) carried
// alongside them.
type Space = action.Space

// Action is one frame's control record: one selected category index per
// discrete group of its space, plus the continuous components.
type Action = action.Action

// DefaultSpace returns the built-in control vocabulary: a five-way movement
// group, a binary interaction group, and two continuous camera-delta
// components (pitch, yaw).
//
// Example:
//
//	space := action.DefaultSpace()
//	rest := space.Zero()
func DefaultSpace() Space {
	return action.DefaultSpace()
}

// EncodeBatch packs per-frame actions into the tensors the action embedder
// consumes: a [batch, frames, groups] int32 index tensor and a
// [batch, frames, continuousDims] float32 tensor.
//
// Every sequence must have the same number of frames and every action must
// validate against the space.
//
// Example:
//
//	idx, cont, err := action.EncodeBatch(space, [][]action.Action{seq}, backend)
//	v, err := model.Forward(frames, noiseLevels, idx, cont)
func EncodeBatch[B tensor.Backend](space Space, steps [][]Action, backend B) (*tensor.Tensor[int32, B], *tensor.Tensor[float32, B], error) {
	return action.EncodeBatch[B](space, steps, backend)
}
