package frameio

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/mirage-ml/mirage/internal/tensor"
)

// Gray renders one channel of a [batch, channels, height, width] frame as
// a grayscale image, stretching the channel's value range to 0..255. A
// constant channel renders mid gray. Batch entry 0 is rendered.
func Gray[B tensor.Backend](frame *tensor.Tensor[float32, B], channel int) (*image.Gray, error) {
	s := frame.Shape()
	if len(s) != 4 {
		return nil, fmt.Errorf("frameio: frame must be [batch, channels, height, width], got %v", s)
	}
	if channel < 0 || channel >= s[1] {
		return nil, fmt.Errorf("frameio: channel %d out of range [0, %d)", channel, s[1])
	}

	h, w := s[2], s[3]
	plane := frame.Data()[channel*h*w : (channel+1)*h*w]

	lo, hi := plane[0], plane[0]
	for _, v := range plane {
		lo, hi = min(lo, v), max(hi, v)
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	if hi == lo {
		for i := range img.Pix {
			img.Pix[i] = 128
		}
		return img, nil
	}
	scale := 255 / (hi - lo)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = uint8((plane[y*w+x]-lo)*scale + 0.5)
		}
	}
	return img, nil
}

// Resize scales img to width x height with ApproxBiLinear.
func Resize(img image.Image, width, height int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Rect, img, img.Bounds(), draw.Over, nil)
	return dst
}

// WritePNG writes img to path as a PNG file.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
