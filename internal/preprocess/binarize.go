// Package preprocess turns uploaded images into the binary representation the
// text detector consumes.
package preprocess

import (
	"errors"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// ErrEmptyImage is returned for nil or zero-area input.
var ErrEmptyImage = errors.New("image is empty")

// BT.601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Grayscale converts img to a single-channel image using BT.601 weights. The
// result has its origin at (0,0).
func Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	rgba := effect.GrayscaleWithWeights(img, lumaR, lumaG, lumaB)
	b := rgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := rgba.PixOffset(b.Min.X, b.Min.Y+y)
		dst := y * gray.Stride
		for x := 0; x < b.Dx(); x++ {
			// R, G and B carry the same luma value
			gray.Pix[dst+x] = rgba.Pix[src+4*x]
		}
	}
	return gray, nil
}

// Binarize converts img to grayscale and applies an inverted Otsu threshold:
// pixels brighter than the threshold become 0, all others 255. Dark strokes on
// a light background therefore come out as white foreground. The output has
// the same dimensions as the input with its origin at (0,0).
func Binarize(img image.Image) (*image.Gray, error) {
	gray, err := Grayscale(img)
	if err != nil {
		return nil, err
	}
	t := OtsuThreshold(gray)
	return ThresholdInverted(gray, t), nil
}

// ThresholdInverted sets pixels above t to 0 and the rest to 255.
func ThresholdInverted(gray *image.Gray, t uint8) *image.Gray {
	var bin *image.Gray
	if t == 255 {
		// nothing is brighter than 255
		bin = image.NewGray(image.Rect(0, 0, gray.Bounds().Dx(), gray.Bounds().Dy()))
	} else {
		bin = segment.Threshold(gray, t+1)
	}
	invert(bin)
	return bin
}

func invert(g *image.Gray) {
	for i, v := range g.Pix {
		g.Pix[i] = 255 - v
	}
}
