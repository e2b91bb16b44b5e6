package diffusion

import (
	"fmt"
	"math"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// AddNoise runs the forward noising process at one noise level:
//
//	x_t = sqrt(acc[t])*x0 + sqrt(1-acc[t])*noise
//
// Panics when x0 and noise shapes differ.
func AddNoise[B tensor.Backend](s *Schedule, x0, noise *tensor.Tensor[float32, B], noiseLevel int) *tensor.Tensor[float32, B] {
	if !x0.Shape().Equal(noise.Shape()) {
		panic(fmt.Sprintf("add noise: x0 shape %v does not match noise shape %v", x0.Shape(), noise.Shape()))
	}

	acc := s.AlphaCumprod(noiseLevel)
	signal := float32(math.Sqrt(acc))
	sigma := float32(math.Sqrt(1 - acc))
	return x0.MulScalar(signal).Add(noise.MulScalar(sigma))
}

// VTarget computes the v-prediction regression target at a noise level:
//
//	v = sqrt(acc[t])*noise - sqrt(1-acc[t])*x0
//
// The model is trained to predict v from the noised sample; sampling
// recovers x0 and noise estimates from it.
func VTarget[B tensor.Backend](s *Schedule, x0, noise *tensor.Tensor[float32, B], noiseLevel int) *tensor.Tensor[float32, B] {
	if !x0.Shape().Equal(noise.Shape()) {
		panic(fmt.Sprintf("v target: x0 shape %v does not match noise shape %v", x0.Shape(), noise.Shape()))
	}

	acc := s.AlphaCumprod(noiseLevel)
	signal := float32(math.Sqrt(acc))
	sigma := float32(math.Sqrt(1 - acc))
	return noise.MulScalar(signal).Sub(x0.MulScalar(sigma))
}

// MSELoss returns the mean squared error between a prediction and its
// target. Panics when shapes differ.
func MSELoss[B tensor.Backend](pred, target *tensor.Tensor[float32, B]) float32 {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("mse loss: prediction shape %v does not match target shape %v", pred.Shape(), target.Shape()))
	}

	diff := target.MulScalar(-1).Add(pred)
	sq := diff.Mul(diff)
	return sq.Sum().Item() / float32(sq.NumElements())
}
