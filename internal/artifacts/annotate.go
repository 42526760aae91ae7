package artifacts

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/mathocr/internal/geometry"
	"github.com/MeKo-Tech/mathocr/internal/utils"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Style configures annotation colours as hex strings.
type Style struct {
	BoxColor  string
	TextColor string
	Thickness int
}

// DefaultStyle draws green boxes and red labels.
func DefaultStyle() Style {
	return Style{BoxColor: "#00FF00", TextColor: "#FF0000", Thickness: 2}
}

// ParseColor parses a hex colour such as "#00ff00".
func ParseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Label is one box with its text.
type Label struct {
	Box  geometry.Box
	Text string
}

// Annotator draws boxes and labels onto copies of images.
type Annotator struct {
	box       color.RGBA
	text      color.RGBA
	thickness int
	face      font.Face
}

// NewAnnotator validates the style colours.
func NewAnnotator(style Style) (*Annotator, error) {
	def := DefaultStyle()
	if style.BoxColor == "" {
		style.BoxColor = def.BoxColor
	}
	if style.TextColor == "" {
		style.TextColor = def.TextColor
	}
	if style.Thickness <= 0 {
		style.Thickness = def.Thickness
	}
	boxCol, err := ParseColor(style.BoxColor)
	if err != nil {
		return nil, err
	}
	textCol, err := ParseColor(style.TextColor)
	if err != nil {
		return nil, err
	}
	return &Annotator{box: boxCol, text: textCol, thickness: style.Thickness, face: basicfont.Face7x13}, nil
}

// Annotate returns an RGBA copy of img with every label drawn. The text
// baseline sits 10px above the box top.
func (a *Annotator) Annotate(img image.Image, labels []Label) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for _, l := range labels {
		utils.DrawRect(dst, l.Box.Rect(), a.box, a.thickness)
		if l.Text == "" {
			continue
		}
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(a.text),
			Face: a.face,
			Dot:  fixed.P(l.Box.X0, l.Box.Y0-10),
		}
		d.DrawString(l.Text)
	}
	return dst
}
