package nn

import (
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Parameter is a named weight tensor owned by a layer.
//
// Parameters carry no gradient state: weights arrive from a checkpoint via
// LoadStateDict (or an initializer) and the engine only runs them forward.
//
// Example:
//
//	// Create a weight parameter
//	weight := nn.NewParameter("weight", weightTensor)
//
//	// Access the tensor
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
}

// NewParameter creates a new named parameter.
//
// The parameter tensor should be initialized before creating the Parameter.
//
// Parameters:
//   - name: Local name for this parameter (e.g., "weight", "bias");
//     owning models prefix it when building a state dict
//   - tensor: The initialized parameter tensor
//
// Returns a new Parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}
