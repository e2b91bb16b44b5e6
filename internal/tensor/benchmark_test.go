package tensor

import (
	"fmt"
	"testing"
)

// Benchmark shapes mirror the reference model: 16-channel 18x32 latent
// frames, 9x16 patch grids of 1024-wide tokens.

func BenchmarkFrameCreation(b *testing.B) {
	backend := NewMockBackend()
	frame := Shape{1, 16, 18, 32}

	b.Run("Zeros", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Zeros[float32](frame, backend)
		}
	})

	b.Run("Randn", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Randn[float32](frame, backend)
		}
	})
}

func BenchmarkFrameElementwise(b *testing.B) {
	backend := NewMockBackend()

	// One, four, and a full window of frames.
	for _, frames := range []int{1, 4, 32} {
		shape := Shape{1, frames, 16, 18, 32}
		x := Randn[float32](shape, backend)
		noise := Randn[float32](shape, backend)

		b.Run(fmt.Sprintf("Renoise-%df", frames), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				// The sampler's context re-noise: x*sa + noise*sb.
				_ = x.MulScalar(0.91).Add(noise.MulScalar(0.39))
			}
		})
	}
}

func BenchmarkTokenProjection(b *testing.B) {
	backend := NewMockBackend()

	// 9x16 grid of tokens through a square hidden projection.
	for _, hidden := range []int{256, 1024} {
		tokens := Randn[float32](Shape{144, hidden}, backend)
		weight := Randn[float32](Shape{hidden, hidden}, backend)

		b.Run(fmt.Sprintf("MatMul-144x%d", hidden), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = tokens.MatMul(weight)
			}
		})
	}
}

func BenchmarkWindowOps(b *testing.B) {
	backend := NewMockBackend()

	window := Randn[float32](Shape{1, 32, 16, 18, 32}, backend)
	frames := make([]*Tensor[float32, *MockBackend], 8)
	for i := range frames {
		frames[i] = Randn[float32](Shape{1, 1, 16, 18, 32}, backend)
	}

	b.Run("NarrowLastFrame", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = window.Narrow(1, 31, 1)
		}
	})

	b.Run("CatWindow", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = Cat(frames, 1)
		}
	})
}

func BenchmarkModulationSplit(b *testing.B) {
	backend := NewMockBackend()

	// Six-way AdaLN chunk of a per-frame conditioning vector.
	cond := Randn[float32](Shape{1, 4, 6 * 1024}, backend)

	for i := 0; i < b.N; i++ {
		_ = cond.Chunk(6, -1)
	}
}

func BenchmarkShapeOps(b *testing.B) {
	frame := Shape{1, 16, 18, 32}
	grid := Shape{1, 4, 144, 1024}

	b.Run("NumElements", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = grid.NumElements()
		}
	})

	b.Run("ComputeStrides", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = frame.ComputeStrides()
		}
	})

	b.Run("BroadcastShapes", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _, _ = BroadcastShapes(grid, Shape{1, 4, 1, 1024})
		}
	})
}
