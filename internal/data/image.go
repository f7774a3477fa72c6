package data

import (
	"fmt"
	"image"
	"io"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"github.com/samcharles93/ocrstack/internal/config"
	"github.com/samcharles93/ocrstack/internal/tensor"
)

// LoadImage opens an image file, honouring EXIF orientation.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes an image from r.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// ToTensor resizes img to the configured input size and returns a
// (C, H, W) tensor with values scaled to [-1, 1].
func ToTensor(img image.Image, in config.Input) *tensor.Tensor {
	resized := imaging.Resize(img, in.Width, in.Height, imaging.Lanczos)
	out := tensor.New(in.Channels, in.Height, in.Width)
	plane := in.Height * in.Width

	if in.Channels == 1 {
		gray := effect.Grayscale(resized)
		for y := 0; y < in.Height; y++ {
			for x := 0; x < in.Width; x++ {
				v := gray.Pix[y*gray.Stride+x]
				out.Data[y*in.Width+x] = normalise(v)
			}
		}
		return out
	}

	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			off := y*resized.Stride + x*4
			for c := 0; c < 3; c++ {
				out.Data[c*plane+y*in.Width+x] = normalise(resized.Pix[off+c])
			}
		}
	}
	return out
}

func normalise(v uint8) float32 {
	return float32(v)/127.5 - 1
}
