// Copyright 2025 Mirage ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers the video model is
// assembled from.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, LayerNorm, MLP, Embedding, PatchEmbed
//   - Activations: Sigmoid, SiLU, GELUTanh
//   - Attention: ScaledDotProductAttention, SpatialAttention, TemporalAttention
//   - Position encodings: SinusoidalPositionalEncoding, RotaryCache
//   - Utilities: Module interface, Parameter, Unpatchify
//   - Initialization: Xavier, Zeros, Ones, Randn
//
// # Basic Usage
//
//	import (
//	    "github.com/mirage-ml/mirage/nn"
//	    "github.com/mirage-ml/mirage/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // Project one latent frame to a token grid
//	    patch := nn.NewPatchEmbed(16, 1024, 2, false, backend)
//	    tokens := patch.Forward(frame) // [batch, gridH, gridW, 1024]
//	}
//
// # Layers
//
// Linear: Fully connected layer with Xavier initialization
//
//	layer := nn.NewLinear(inFeatures, outFeatures, backend)
//
// LayerNorm: Layer normalization, optionally without the affine pair
//
//	norm := nn.NewLayerNorm(dim, 1e-5, backend)
//	plain := nn.NewLayerNormNoAffine(dim, 1e-6, backend)
//
// MLP: 2-layer feed-forward block with GELU
//
//	ffn := nn.NewMLP(dim, 4*dim, backend)
//
// # Axial Attention
//
// The video transformer factors attention over a [batch, frames, tokens, dim]
// grid into two cheap passes. SpatialAttention mixes the tokens of each
// frame; TemporalAttention mixes the same token position across frames and
// can be made causal so frames never read the future:
//
//	spatial := nn.NewSpatialAttention(nn.SpatialAttentionConfig{
//	    EmbedDim: 1024, NumHeads: 16, GridH: 9, GridW: 16, UseRotary: true,
//	}, backend)
//	temporal := nn.NewTemporalAttention(nn.TemporalAttentionConfig{
//	    EmbedDim: 1024, NumHeads: 16, Causal: true, UseRotary: true,
//	}, backend)
//
// # Parameter Management
//
// Access layer parameters for checkpoint loading:
//
//	params := layer.Parameters()
//	for _, param := range params {
//	    fmt.Println(param.Name(), param.Tensor().Shape())
//	}
package nn
