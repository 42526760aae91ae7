package preprocess

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/mathocr/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestOtsuThreshold_Bimodal(t *testing.T) {
	img := testutil.BimodalImage(40, 10, 50, 200)
	assert.Equal(t, uint8(50), OtsuThreshold(img))
}

func TestOtsuThreshold_Uniform(t *testing.T) {
	img := testutil.BimodalImage(10, 10, 128, 128)
	assert.Equal(t, uint8(0), OtsuThreshold(img))
}

func TestOtsuThreshold_EmptyHistogram(t *testing.T) {
	var hist [256]int
	assert.Equal(t, uint8(0), otsuFromHistogram(hist))
}

func TestHistogram_SubImage(t *testing.T) {
	img := testutil.BimodalImage(10, 2, 0, 255)
	sub, ok := img.SubImage(image.Rect(5, 0, 10, 2)).(*image.Gray)
	assert.True(t, ok)

	hist := Histogram(sub)
	assert.Equal(t, 0, hist[0])
	assert.Equal(t, 10, hist[255])
}

func TestOtsuThreshold_SeparatesClasses(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("threshold lies between the two intensities", prop.ForAll(
		func(dark, gap int) bool {
			light := dark + gap
			img := testutil.BimodalImage(16, 4, uint8(dark), uint8(light))
			th := int(OtsuThreshold(img))
			return th >= dark && th < light
		},
		gen.IntRange(0, 200),
		gen.IntRange(1, 55),
	))

	properties.Property("binary output has input dimensions and only 0/255", prop.ForAll(
		func(w, h int, dark, light uint8) bool {
			bin, err := Binarize(testutil.BimodalImage(w, h, dark, light))
			if err != nil {
				return false
			}
			if bin.Bounds().Dx() != w || bin.Bounds().Dy() != h {
				return false
			}
			for _, v := range bin.Pix {
				if v != 0 && v != 255 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.IntRange(1, 40),
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
