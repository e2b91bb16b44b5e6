// Copyright 2025 Mirage ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col algorithm for efficient convolutions
//   - Float32, Float64, Int32, and Int64 support
//   - Batch processing
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	import (
//	    "github.com/mirage-ml/mirage/backend/cpu"
//	    "github.com/mirage-ml/mirage/tensor"
//	    "github.com/mirage-ml/mirage/nn"
//	)
//
//	func main() {
//	    // Create CPU backend
//	    backend := cpu.New()
//
//	    // Use with tensors
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	    z := x.Add(y)
//
//	    // Use with neural network layers
//	    layer := nn.NewLinear(1024, 4096, backend)
//	}
//
// # Performance
//
// The CPU backend is tuned for batch inference on CPUs:
//   - Blocked matrix multiplication over a worker pool
//   - Im2col-based convolutions
//   - Fused activation kernels (sigmoid, SiLU, tanh-GELU)
//
// Pool sizing follows the host CPU count; NewSequential disables the pool
// for deterministic profiling.
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation is
// isolated and does not share mutable state.
package cpu
