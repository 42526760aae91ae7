package onnx

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensorAndValidate(t *testing.T) {
	c, h, w := 3, 4, 5
	ten, err := NewImageTensor(make([]float32, c*h*w), c, h, w)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, ten.Shape)
	assert.NoError(t, ValidateNCHW(ten.Shape))
}

func TestNewImageTensorErrors(t *testing.T) {
	_, err := NewImageTensor(nil, 3, 4, 5)
	assert.Error(t, err)

	_, err = NewImageTensor(make([]float32, 10), 3, 4, 5)
	assert.Error(t, err)
}

func TestValidateNCHW(t *testing.T) {
	assert.Error(t, ValidateNCHW([]int64{1, 3, 4}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, 0, 4}))
	assert.NoError(t, ValidateNCHW([]int64{2, 1, 8, 8}))
}

func TestImageToTensor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	img.Set(1, 0, color.RGBA{R: 0, G: 255, B: 255, A: 255})

	ten, err := ImageToTensor(img, SymmetricNormalization)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 1, 2}, ten.Shape)

	// R plane, G plane, B plane
	want := []float32{1, -1, -1, 1, -1, 1}
	for i, v := range want {
		assert.InDelta(t, v, ten.Data[i], 1e-6, "index %d", i)
	}
}

func TestImageToTensor_ImageNet(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	ten, err := ImageToTensor(img, ImageNetNormalization)
	require.NoError(t, err)
	assert.InDelta(t, -0.485/0.229, ten.Data[0], 1e-5)
}

func TestImageToTensor_Errors(t *testing.T) {
	_, err := ImageToTensor(nil, SymmetricNormalization)
	assert.Error(t, err)

	_, err = ImageToTensor(image.NewRGBA(image.Rect(0, 0, 0, 3)), SymmetricNormalization)
	assert.Error(t, err)
}

func TestResolveLibraryPath_Explicit(t *testing.T) {
	_, err := resolveLibraryPath("/definitely/missing/libonnxruntime.so")
	assert.Error(t, err)
}

func TestLibraryName(t *testing.T) {
	name, err := libraryName()
	if err != nil {
		t.Skip("unsupported OS")
	}
	assert.NotEmpty(t, name)
}
