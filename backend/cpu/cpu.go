// Copyright 2025 Mirage ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/mirage-ml/mirage/internal/backend/cpu"
	"github.com/mirage-ml/mirage/tensor"
)

// Backend represents the CPU backend implementation.
//
// CPU backend provides pure Go implementations of all tensor operations,
// with the heavy kernels fanned out over a worker pool.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend with a worker pool sized from the host.
//
// Example:
//
//	import (
//	    "github.com/mirage-ml/mirage/backend/cpu"
//	    "github.com/mirage-ml/mirage/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewSequential creates a CPU backend with parallel execution disabled.
// Useful for deterministic profiling and small test tensors.
func NewSequential() *Backend {
	return internalcpu.NewSequential()
}
