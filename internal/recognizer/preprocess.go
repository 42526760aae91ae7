package recognizer

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ResizeForRecognition scales img to targetHeight preserving aspect ratio.
// The width is clamped to maxWidth when positive and right-padded with black
// to a multiple of padToMultiple when positive.
func ResizeForRecognition(img image.Image, targetHeight, maxWidth, padToMultiple int) (image.Image, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if targetHeight <= 0 {
		return nil, fmt.Errorf("invalid target height: %d", targetHeight)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("image has zero dimension %dx%d", w, h)
	}

	newW := max(1, int(float64(w)*float64(targetHeight)/float64(h)))
	if maxWidth > 0 && newW > maxWidth {
		newW = maxWidth
	}
	resized := imaging.Resize(img, newW, targetHeight, imaging.Lanczos)

	outW := newW
	if padToMultiple > 0 {
		if rem := newW % padToMultiple; rem != 0 {
			outW += padToMultiple - rem
		}
	}
	if outW == newW {
		return resized, nil
	}
	canvas := imaging.New(outW, targetHeight, color.Black)
	return imaging.Paste(canvas, resized, image.Pt(0, 0)), nil
}
