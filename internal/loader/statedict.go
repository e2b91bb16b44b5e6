package loader

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// StateDict is an insertion-ordered mapping from parameter name to raw
// tensor. Order matters: checkpoint files are written in dict order, and
// models walk the dict in order when assigning weights.
//
// Construct with NewStateDict; the zero value is not usable.
type StateDict struct {
	om *orderedmap.OrderedMap[string, *tensor.RawTensor]
}

// NewStateDict creates an empty state dict.
func NewStateDict() *StateDict {
	return &StateDict{om: orderedmap.New[string, *tensor.RawTensor]()}
}

// Set stores a tensor under name. A new name appends to the iteration
// order; an existing name keeps its position and gets the new tensor.
func (d *StateDict) Set(name string, t *tensor.RawTensor) {
	d.om.Set(name, t)
}

// Get retrieves a tensor by name.
func (d *StateDict) Get(name string) (*tensor.RawTensor, bool) {
	return d.om.Get(name)
}

// Len returns the number of entries.
func (d *StateDict) Len() int {
	return d.om.Len()
}

// All returns an iterator over name/tensor pairs in insertion order.
func (d *StateDict) All() iter.Seq2[string, *tensor.RawTensor] {
	return func(yield func(string, *tensor.RawTensor) bool) {
		for pair := d.om.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Names returns the parameter names in insertion order.
func (d *StateDict) Names() []string {
	names := make([]string, 0, d.om.Len())
	for pair := d.om.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}
