package nn

import (
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Backends may provide fused activation kernels through the capability
// interfaces below. Activation layers probe for them with a type assertion
// and otherwise compose the function from primitive tensor operations, so a
// backend that only implements the core tensor.Backend interface still
// produces correct results.

// SigmoidBackend is implemented by backends with a fused logistic kernel.
type SigmoidBackend interface {
	Sigmoid(x *tensor.RawTensor) *tensor.RawTensor
}

// SiLUBackend is implemented by backends with a fused SiLU (swish) kernel.
type SiLUBackend interface {
	SiLU(x *tensor.RawTensor) *tensor.RawTensor
}

// GELUTanhBackend is implemented by backends with a fused kernel for the
// tanh approximation of GELU.
type GELUTanhBackend interface {
	GELUTanh(x *tensor.RawTensor) *tensor.RawTensor
}

// Sigmoid applies the logistic function element-wise.
//
//	sigmoid(x) = 1 / (1 + e^(-x))
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies the sigmoid function.
func (s *Sigmoid[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	if fused, ok := any(backend).(SigmoidBackend); ok {
		return tensor.New[float32, B](fused.Sigmoid(x.Raw()), backend)
	}
	return sigmoidCompose(x)
}

// Parameters returns an empty list (no weights).
func (s *Sigmoid[B]) Parameters() []*Parameter[B] {
	return nil
}

// SiLU applies the Sigmoid Linear Unit (swish) element-wise.
//
//	silu(x) = x * sigmoid(x)
//
// SiLU feeds the conditioning MLPs and the adaptive modulation projections.
type SiLU[B tensor.Backend] struct{}

// NewSiLU creates a new SiLU activation.
func NewSiLU[B tensor.Backend]() *SiLU[B] {
	return &SiLU[B]{}
}

// Forward applies the SiLU function.
func (s *SiLU[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	if fused, ok := any(backend).(SiLUBackend); ok {
		return tensor.New[float32, B](fused.SiLU(x.Raw()), backend)
	}
	return sigmoidCompose(x).Mul(x)
}

// Parameters returns an empty list (no weights).
func (s *SiLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// GELUTanh applies the tanh approximation of the Gaussian Error Linear Unit.
//
//	gelu(x) = 0.5 * x * (1 + tanh(sqrt(2/pi) * (x + 0.044715*x^3)))
//
// This is the activation inside the transformer MLP blocks.
type GELUTanh[B tensor.Backend] struct{}

// NewGELUTanh creates a new GELUTanh activation.
func NewGELUTanh[B tensor.Backend]() *GELUTanh[B] {
	return &GELUTanh[B]{}
}

// Forward applies the GELU function.
func (g *GELUTanh[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	if fused, ok := any(backend).(GELUTanhBackend); ok {
		return tensor.New[float32, B](fused.GELUTanh(x.Raw()), backend)
	}

	const c = 0.7978845608028654 // sqrt(2/pi)

	cubed := x.Mul(x).Mul(x)
	inner := cubed.MulScalar(0.044715).Add(x).MulScalar(c)
	t := tanhCompose(inner)
	return t.AddScalar(1).MulScalar(0.5).Mul(x)
}

// Parameters returns an empty list (no weights).
func (g *GELUTanh[B]) Parameters() []*Parameter[B] {
	return nil
}

// sigmoidCompose computes 1/(1+e^-x) from primitive tensor operations.
func sigmoidCompose[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	denom := x.MulScalar(-1).Exp().AddScalar(1)
	return tensor.Ones[float32](denom.Shape(), x.Backend()).Div(denom)
}

// tanhCompose computes tanh(x) = 2*sigmoid(2x) - 1 from primitive ops.
func tanhCompose[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return sigmoidCompose(x.MulScalar(2)).MulScalar(2).SubScalar(1)
}
