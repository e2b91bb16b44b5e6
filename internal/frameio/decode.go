package frameio

import (
	"fmt"
	"image"
	_ "image/png" // registered for Decode
	"os"

	_ "golang.org/x/image/bmp"  // registered for Decode
	_ "golang.org/x/image/webp" // registered for Decode

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Decode reads a PNG, WebP, or BMP file into a [1, 3, height, width]
// tensor with values in [0, 1], channels in RGB order.
func Decode[B tensor.Backend](path string, backend B) (*tensor.Tensor[float32, B], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("frameio: decode %s: %w", path, err)
	}
	return FromImage(img, backend)
}

// FromImage converts img to a [1, 3, height, width] tensor with values
// in [0, 1], channels in RGB order.
func FromImage[B tensor.Backend](img image.Image, backend B) (*tensor.Tensor[float32, B], error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float32, 3*h*w)
	rp, gp, bp := data[:h*w], data[h*w:2*h*w], data[2*h*w:]
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rp[i] = float32(r>>8) / 255
			gp[i] = float32(g>>8) / 255
			bp[i] = float32(b>>8) / 255
			i++
		}
	}
	return tensor.FromSlice(data, tensor.Shape{1, 3, h, w}, backend)
}
