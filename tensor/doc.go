// Copyright 2025 Mirage ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides type-safe tensor operations for the Mirage
// video diffusion engine.
//
// # Overview
//
// Tensors carry latent frames, model weights, and conditioning signals
// through the engine. This package provides:
//   - Generic type-safe tensors (Tensor[T, B])
//   - NumPy-style broadcasting
//   - Reference-counted buffers with copy-on-write sharing
//   - A Backend interface for device-specific compute
//
// # Basic Usage
//
//	import (
//	    "github.com/mirage-ml/mirage/backend/cpu"
//	    "github.com/mirage-ml/mirage/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // Create tensors
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//
//	    // Tensor operations
//	    z := x.Add(y)
//	    result := x.MatMul(y.Transpose())
//	}
//
// # Supported Data Types
//
// The DType constraint covers the types the engine moves around:
//   - float32, float64 (latents, weights, activations)
//   - int32, int64 (noise levels, action indices)
//
// # Broadcasting
//
// Element-wise operations follow NumPy broadcasting rules:
//
//	a := tensor.Zeros[float32](tensor.Shape{3, 1}, backend)    // (3, 1)
//	b := tensor.Ones[float32](tensor.Shape{3, 4}, backend)     // (3, 4)
//	c := a.Add(b)                                              // (3, 4)
//
// # Memory Management
//
// Buffers are reference counted and shared copy-on-write. Clone shares
// the buffer; Release drops a reference so long sampling loops can
// return step intermediates eagerly instead of waiting for the garbage
// collector.
package tensor
