// Copyright 2025 Mirage ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/mirage-ml/mirage/internal/nn"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Position Encodings for the Video Transformer

// Default frequency parameters for the two rotary variants.
const (
	// DefaultRotaryTheta is the base for temporal (sequence) frequencies.
	DefaultRotaryTheta = nn.DefaultRotaryTheta
	// DefaultRotaryMaxFreq is the pixel frequency ceiling for spatial
	// frequencies.
	DefaultRotaryMaxFreq = nn.DefaultRotaryMaxFreq
)

// RotaryCache holds pre-computed rotary position tables (RoPE).
//
// RoPE applies a rotation to query and key embeddings based on their
// position. The temporal variant indexes by frame step, the spatial variant
// by (row, col) grid cell.
//
// Example:
//
//	backend := cpu.New()
//	rope := nn.NewTemporalRotary[*cpu.CPUBackend](64, 0, backend)
//
//	// Apply to attention queries/keys
//	q := tensor.Randn[float32](tensor.Shape{batch, heads, seq, 64}, backend)
//	if err := rope.EnsureLen(seq); err != nil { ... }
//	qRotated := rope.Rotate(q, 0)
type RotaryCache[B tensor.Backend] = nn.RotaryCache[B]

// NewTemporalRotary creates rotary tables indexed by frame step.
//
// A non-positive theta selects DefaultRotaryTheta. Call EnsureLen before
// Rotate to extend the tables to the needed sequence length.
//
// Example:
//
//	rope := nn.NewTemporalRotary[*cpu.CPUBackend](64, 10000.0, backend)
func NewTemporalRotary[B tensor.Backend](headDim int, theta float64, backend B) *RotaryCache[B] {
	return nn.NewTemporalRotary[B](headDim, theta, backend)
}

// NewSpatialRotary creates rotary tables indexed by 2D grid cell, with the
// head dimension split evenly across the row and column axes.
//
// A non-positive maxFreq selects DefaultRotaryMaxFreq. Call EnsureGrid
// before Rotate to build tables for the frame's token grid.
//
// Example:
//
//	rope := nn.NewSpatialRotary[*cpu.CPUBackend](64, 0, backend)
//	if err := rope.EnsureGrid(9, 16); err != nil { ... }
func NewSpatialRotary[B tensor.Backend](headDim int, maxFreq float64, backend B) *RotaryCache[B] {
	return nn.NewSpatialRotary[B](headDim, maxFreq, backend)
}

// SinusoidalPositionalEncoding implements fixed sinusoidal positional encodings.
//
// This is the original positional encoding from "Attention is All You Need"
// (Vaswani et al., 2017). The temporal attention path adds it to activations
// when rotary tables are disabled.
//
// Example:
//
//	backend := cpu.New()
//	pe := nn.NewSinusoidalPositionalEncoding(32, 1024, backend)
//	encodings := pe.Forward(8)  // [1, 8, 1024]
//
//	// Add to embeddings
//	embeddings := encodings.Add(embeddings)
type SinusoidalPositionalEncoding[B tensor.Backend] = nn.SinusoidalPositionalEncoding[B]

// NewSinusoidalPositionalEncoding creates a new sinusoidal positional encoding layer.
//
// Pre-computes all positional encodings up to maxLen using sine and cosine
// functions.
//
// Parameters:
//   - maxLen: Maximum sequence length
//   - dim: Embedding dimension
//   - backend: Computation backend
//
// Example:
//
//	pe := nn.NewSinusoidalPositionalEncoding(32, 1024, backend)
func NewSinusoidalPositionalEncoding[B tensor.Backend](maxLen, dim int, backend B) *SinusoidalPositionalEncoding[B] {
	return nn.NewSinusoidalPositionalEncoding[B](maxLen, dim, backend)
}

// SinusoidalPositionalEncoding2D encodes a fixed (rows, cols) token grid:
// the first half of the vector carries the row position, the second half
// the column position.
//
// The spatial attention path uses this when rotary tables are disabled.
//
// Example:
//
//	backend := cpu.New()
//	pe := nn.NewSinusoidalPositionalEncoding2D(9, 16, 1024, backend)
//	encodings := pe.Forward()  // [1, 144, 1024]
type SinusoidalPositionalEncoding2D[B tensor.Backend] = nn.SinusoidalPositionalEncoding2D[B]

// NewSinusoidalPositionalEncoding2D creates a new 2D sinusoidal encoding
// layer for a rows x cols grid. The dimension must be even so it can split
// across the two axes.
//
// Example:
//
//	pe := nn.NewSinusoidalPositionalEncoding2D(9, 16, 1024, backend)
func NewSinusoidalPositionalEncoding2D[B tensor.Backend](rows, cols, dim int, backend B) *SinusoidalPositionalEncoding2D[B] {
	return nn.NewSinusoidalPositionalEncoding2D[B](rows, cols, dim, backend)
}
