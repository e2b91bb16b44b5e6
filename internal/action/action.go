// Package action defines the control vocabulary a video model is
// conditioned on: the space of discrete control groups and continuous
// components, per-frame action records, and the batch encoding consumed by
// the action embedder.
package action

import (
	"fmt"
)

// Movement categories of the default space. Exactly one is active per
// frame; MovementNone is the rest state.
const (
	MovementNone int = iota
	MovementForward
	MovementBack
	MovementLeft
	MovementRight

	movementCount
)

// Interaction states of the default space.
const (
	InteractOff int = iota
	InteractOn

	interactCount
)

// Group is one mutually-exclusive set of discrete control categories. An
// action selects exactly one category index in [0, Size) per group.
type Group struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Space describes the full control vocabulary: the discrete groups and the
// number of continuous components (camera deltas and the like) carried
// alongside them.
type Space struct {
	Groups         []Group `json:"groups"`
	ContinuousDims int     `json:"continuous_dims"`
}

// DefaultSpace returns the built-in control vocabulary: a five-way movement
// group, a binary interaction group, and two continuous camera-delta
// components (pitch, yaw).
func DefaultSpace() Space {
	return Space{
		Groups: []Group{
			{Name: "movement", Size: movementCount},
			{Name: "interaction", Size: interactCount},
		},
		ContinuousDims: 2,
	}
}

// Check reports whether the space itself is well formed: named groups with
// positive sizes and a non-negative continuous arity.
func (s Space) Check() error {
	for g, group := range s.Groups {
		if group.Name == "" {
			return fmt.Errorf("group %d has no name", g)
		}
		if group.Size <= 0 {
			return fmt.Errorf("group %q: size must be positive, got %d", group.Name, group.Size)
		}
	}
	if s.ContinuousDims < 0 {
		return fmt.Errorf("continuous dims must be non-negative, got %d", s.ContinuousDims)
	}
	return nil
}

// Zero returns the rest action for the space: category 0 in every group and
// zeroed continuous components.
func (s Space) Zero() Action {
	return Action{
		Indices:    make([]int, len(s.Groups)),
		Continuous: make([]float32, s.ContinuousDims),
	}
}

// Action is one frame's control record: one selected category index per
// discrete group of its space, plus the continuous components.
type Action struct {
	Indices    []int     `json:"indices"`
	Continuous []float32 `json:"continuous"`
}

// Validate checks an action against the space: one in-range index per group
// and matching continuous arity.
func (s Space) Validate(a Action) error {
	if len(a.Indices) != len(s.Groups) {
		return fmt.Errorf("got %d group indices, space defines %d groups", len(a.Indices), len(s.Groups))
	}
	for g, idx := range a.Indices {
		if idx < 0 || idx >= s.Groups[g].Size {
			return fmt.Errorf("group %q: index %d out of range [0, %d)", s.Groups[g].Name, idx, s.Groups[g].Size)
		}
	}
	if len(a.Continuous) != s.ContinuousDims {
		return fmt.Errorf("got %d continuous components, space defines %d", len(a.Continuous), s.ContinuousDims)
	}
	return nil
}
