package onnx

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Tensor represents a simple float32 tensor prepared for ONNX input.
// Data layout is row-major, with NCHW for images.
type Tensor struct {
	Data  []float32
	Shape []int64 // e.g., [N, C, H, W]
}

// Normalization holds per-channel mean and standard deviation applied after
// scaling pixel values to [0,1].
type Normalization struct {
	Mean [3]float32
	Std  [3]float32
}

var (
	// ImageNetNormalization is used by DB text detection models.
	ImageNetNormalization = Normalization{
		Mean: [3]float32{0.485, 0.456, 0.406},
		Std:  [3]float32{0.229, 0.224, 0.225},
	}
	// SymmetricNormalization maps [0,1] to [-1,1]; used by CTC recognizers.
	SymmetricNormalization = Normalization{
		Mean: [3]float32{0.5, 0.5, 0.5},
		Std:  [3]float32{0.5, 0.5, 0.5},
	}
)

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
// data must be length C*H*W in NCHW order.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	expected := c * h * w
	if len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	shape := []int64{1, int64(c), int64(h), int64(w)}
	return Tensor{Data: data, Shape: shape}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// ImageToTensor converts img to a [1, 3, H, W] tensor in RGB order, applying
// norm per channel.
func ImageToTensor(img image.Image, norm Normalization) (Tensor, error) {
	if img == nil {
		return Tensor{}, errors.New("input image is nil")
	}
	nrgba := imaging.Clone(img)
	width, height := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	if width == 0 || height == 0 {
		return Tensor{}, fmt.Errorf("image has zero dimension %dx%d", width, height)
	}

	plane := width * height
	data := make([]float32, 3*plane)
	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*width]
		for x := range width {
			i := y*width + x
			for c := range 3 {
				v := float32(row[4*x+c]) / 255.0
				data[c*plane+i] = (v - norm.Mean[c]) / norm.Std[c]
			}
		}
	}
	return NewImageTensor(data, 3, height, width)
}
