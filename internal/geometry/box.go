// Package geometry derives axis-aligned boxes from detection polygons and
// crops image regions with them.
package geometry

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Box is an axis-aligned rectangle in pixel coordinates with X0<=X1 and
// Y0<=Y1. The maximum edges are exclusive when used for cropping.
type Box struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// NewBox constructs a Box from two corners, ensuring ordering.
func NewBox(x0, y0, x1, y1 int) Box {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return Box{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// BoundingBox returns the min/max box over the polygon points. An empty
// polygon yields the zero Box; a single point yields a zero-area box.
func BoundingBox(pts []image.Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{X0: pts[0].X, Y0: pts[0].Y, X1: pts[0].X, Y1: pts[0].Y}
	for _, p := range pts[1:] {
		if p.X < b.X0 {
			b.X0 = p.X
		}
		if p.Y < b.Y0 {
			b.Y0 = p.Y
		}
		if p.X > b.X1 {
			b.X1 = p.X
		}
		if p.Y > b.Y1 {
			b.Y1 = p.Y
		}
	}
	return b
}

// Width returns the box width.
func (b Box) Width() int { return b.X1 - b.X0 }

// Height returns the box height.
func (b Box) Height() int { return b.Y1 - b.Y0 }

// Empty reports whether the box has zero area.
func (b Box) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X0, b.Y0, b.X1, b.Y1)
}

// Clamp intersects the box with bounds.
func (b Box) Clamp(bounds image.Rectangle) Box {
	r := b.Rect().Intersect(bounds)
	if r.Empty() {
		return Box{X0: r.Min.X, Y0: r.Min.Y, X1: r.Min.X, Y1: r.Min.Y}
	}
	return Box{X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y}
}

// Polygon returns the box corners clockwise from the top-left.
func (b Box) Polygon() []image.Point {
	return []image.Point{
		{X: b.X0, Y: b.Y0},
		{X: b.X1, Y: b.Y0},
		{X: b.X1, Y: b.Y1},
		{X: b.X0, Y: b.Y1},
	}
}

// Crop copies the region of img covered by box. Coordinates are relative to
// the image origin. The result is empty when the box misses the image or has
// zero area.
func Crop(img image.Image, box Box) *image.NRGBA {
	bounds := img.Bounds()
	shifted := Box{
		X0: box.X0 + bounds.Min.X,
		Y0: box.Y0 + bounds.Min.Y,
		X1: box.X1 + bounds.Min.X,
		Y1: box.Y1 + bounds.Min.Y,
	}
	r := shifted.Rect().Intersect(bounds)
	if r.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, r)
}
