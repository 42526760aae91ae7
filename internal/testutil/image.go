package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	TinySize   = ImageSize{64, 32}
	SmallSize  = ImageSize{320, 120}
	MediumSize = ImageSize{640, 240}
)

// TestImageConfig holds configuration for generating test images.
type TestImageConfig struct {
	Text       string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
	// Scale enlarges the rendered glyphs by an integer factor so strokes are
	// thick enough for thresholding and detection.
	Scale int
}

// DefaultTestImageConfig returns a default configuration for test images:
// a dark expression on a light background.
func DefaultTestImageConfig() TestImageConfig {
	return TestImageConfig{
		Text:       "2+2",
		Size:       SmallSize,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
		Scale:      3,
	}
}

// GenerateTextImage creates a synthetic image with the configured text centered.
func GenerateTextImage(config TestImageConfig) *image.RGBA {
	if config.Scale < 1 {
		config.Scale = 1
	}
	if config.FontFace == nil {
		config.FontFace = basicfont.Face7x13
	}

	smallW := config.Size.Width / config.Scale
	smallH := config.Size.Height / config.Scale
	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	draw.Draw(small, small.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  small,
		Src:  &image.Uniform{config.Foreground},
		Face: config.FontFace,
	}
	textWidth := font.MeasureString(config.FontFace, config.Text).Ceil()
	textHeight := config.FontFace.Metrics().Height.Ceil()
	drawer.Dot = fixed.P((smallW-textWidth)/2, (smallH+textHeight)/2)
	drawer.DrawString(config.Text)

	if config.Scale == 1 {
		return small
	}

	scaled := imaging.Resize(small, smallW*config.Scale, smallH*config.Scale, imaging.NearestNeighbor)
	out := image.NewRGBA(scaled.Bounds())
	draw.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	return out
}

// BimodalImage returns a grayscale image whose left half has intensity dark
// and right half intensity light.
func BimodalImage(width, height int, dark, light uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := light
			if x < width/2 {
				v = dark
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// SolidImage returns an RGBA image filled with c.
func SolidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600), "Failed to write %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}
