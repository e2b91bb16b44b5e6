package nn

import (
	"github.com/mirage-ml/mirage/internal/tensor"
)

// MLP is the transformer feed-forward block:
//
//	MLP(x) = Linear2(GELU(Linear1(x)))
//
// Where:
//   - Linear1: [dim -> hidden] (expansion, typically 4x)
//   - GELU: tanh-approximated Gaussian Error Linear Unit
//   - Linear2: [hidden -> dim] (projection back)
//
// Example:
//
//	mlp := nn.NewMLP[B](768, 3072, backend)
//	output := mlp.Forward(x) // [batch, seq, 768] -> [batch, seq, 768]
type MLP[B tensor.Backend] struct {
	FC1 *Linear[B]   // [dim -> hidden]
	FC2 *Linear[B]   // [hidden -> dim]
	Act *GELUTanh[B] // Activation function
}

// NewMLP creates a feed-forward block with the given expansion width.
func NewMLP[B tensor.Backend](dim, hidden int, backend B) *MLP[B] {
	return &MLP[B]{
		FC1: NewLinear[B](dim, hidden, backend),
		FC2: NewLinear[B](hidden, dim, backend),
		Act: NewGELUTanh[B](),
	}
}

// Forward computes the feed-forward output.
//
// Shapes:
//   - input: [..., dim]
//   - output: same as input
func (m *MLP[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.FC2.Forward(m.Act.Forward(m.FC1.Forward(x)))
}

// Parameters returns the parameters of both linear layers.
func (m *MLP[B]) Parameters() []*Parameter[B] {
	params := m.FC1.Parameters()
	return append(params, m.FC2.Parameters()...)
}
