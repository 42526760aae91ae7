package geometry

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genPoint generates a random integer point.
func genPoint() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(-2000, 2000),
		gen.IntRange(-2000, 2000),
	).Map(func(vals []interface{}) image.Point {
		return image.Pt(vals[0].(int), vals[1].(int))
	})
}

func TestBoundingBox_Ordered(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("x0<=x1 and y0<=y1 for any polygon", prop.ForAll(
		func(pts []image.Point) bool {
			b := BoundingBox(pts)
			return b.X0 <= b.X1 && b.Y0 <= b.Y1
		},
		gen.SliceOf(genPoint()),
	))

	properties.Property("every polygon point lies inside its box", prop.ForAll(
		func(pts []image.Point) bool {
			b := BoundingBox(pts)
			for _, p := range pts {
				if p.X < b.X0 || p.X > b.X1 || p.Y < b.Y0 || p.Y > b.Y1 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, genPoint()),
	))

	properties.Property("box edges touch polygon points", prop.ForAll(
		func(pts []image.Point) bool {
			b := BoundingBox(pts)
			var minX, minY, maxX, maxY bool
			for _, p := range pts {
				minX = minX || p.X == b.X0
				minY = minY || p.Y == b.Y0
				maxX = maxX || p.X == b.X1
				maxY = maxY || p.Y == b.Y1
			}
			return minX && minY && maxX && maxY
		},
		gen.SliceOfN(3, genPoint()),
	))

	properties.TestingRun(t)
}

func TestCrop_StaysWithinImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	properties := gopter.NewProperties(nil)

	properties.Property("crop size never exceeds image or box", prop.ForAll(
		func(a, b image.Point) bool {
			box := BoundingBox([]image.Point{a, b})
			c := Crop(img, box).Bounds()
			return c.Dx() <= 64 && c.Dy() <= 48 && c.Dx() <= box.Width() && c.Dy() <= box.Height()
		},
		genPoint(),
		genPoint(),
	))

	properties.TestingRun(t)
}
