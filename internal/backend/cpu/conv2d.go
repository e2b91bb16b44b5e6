package cpu

import (
	"fmt"

	"github.com/mirage-ml/mirage/internal/parallel"
	"github.com/mirage-ml/mirage/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// Patches are unrolled into a column matrix, the kernel is treated as a
// [C_out, C_in*K_h*K_w] matrix and the convolution becomes one matrix
// product per batch item. With kernel size equal to stride and zero
// padding this is the patch-embedding projection of the transformer.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: stride must be positive, got %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: padding must be non-negative, got %d", padding))
	}

	n := inputShape[0]
	cIn := inputShape[1]
	h := inputShape[2]
	w := inputShape[3]
	cOut := kernelShape[0]
	kh := kernelShape[2]
	kw := kernelShape[3]

	if cIn != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", cIn, kernelShape[1]))
	}

	hOut := (h+2*padding-kh)/stride + 1
	wOut := (w+2*padding-kw)/stride + 1

	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", hOut, wOut))
	}

	output := newResult(tensor.Shape{n, cOut, hOut, wOut}, input.DType(), cpu.device, "conv2d")

	switch input.DType() {
	case tensor.Float32:
		conv2dKernel(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(),
			n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padding, cpu.pool)
	case tensor.Float64:
		conv2dKernel(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(),
			n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padding, cpu.pool)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s (only float32/float64 supported)", input.DType()))
	}

	return output
}

func conv2dKernel[T floatType](out, in, kern []T, n, cIn, h, w, cOut, kh, kw, hOut, wOut, stride, padding int, pool parallel.Config) {
	colRows := cIn * kh * kw
	colCols := hOut * wOut

	for bi := 0; bi < n; bi++ {
		// im2col: unroll every receptive field into one column.
		cols := make([]T, colRows*colCols)
		inOff := bi * cIn * h * w
		for c := 0; c < cIn; c++ {
			for ky := 0; ky < kh; ky++ {
				for kx := 0; kx < kw; kx++ {
					row := (c*kh+ky)*kw + kx
					for oy := 0; oy < hOut; oy++ {
						iy := oy*stride + ky - padding
						for ox := 0; ox < wOut; ox++ {
							ix := ox*stride + kx - padding
							var v T
							if iy >= 0 && iy < h && ix >= 0 && ix < w {
								v = in[inOff+(c*h+iy)*w+ix]
							}
							cols[row*colCols+oy*wOut+ox] = v
						}
					}
				}
			}
		}

		// kern [C_out, colRows] @ cols [colRows, colCols].
		outOff := bi * cOut * colCols
		parallel.For(cOut, func(oc int) {
			rowK := kern[oc*colRows : (oc+1)*colRows]
			rowO := out[outOff+oc*colCols : outOff+(oc+1)*colCols]
			for j := range rowO {
				rowO[j] = 0
			}
			for r, kv := range rowK {
				colRow := cols[r*colCols : (r+1)*colCols]
				for j, cv := range colRow {
					rowO[j] += kv * cv
				}
			}
		}, pool)
	}
}
