package detector

import (
	"image"
	"math"
	"sort"

	"github.com/MeKo-Tech/mathocr/internal/geometry"
)

// PostProcessOptions controls how a probability map becomes regions.
type PostProcessOptions struct {
	Thresh      float32
	BoxThresh   float32
	UnclipRatio float64
	MinSize     int
}

// readingOrderTolerance is the vertical distance in pixels under which two
// regions count as being on the same line.
const readingOrderTolerance = 10

// compStats accumulates statistics for one connected component.
type compStats struct {
	count                  int
	sum                    float64
	minX, minY, maxX, maxY int
}

// PostProcess thresholds prob (row-major, w*h) and returns one region per
// 4-connected component, in map coordinates.
func PostProcess(prob []float32, w, h int, opts PostProcessOptions) []Region {
	if w <= 0 || h <= 0 || len(prob) < w*h {
		return nil
	}
	mask := make([]bool, w*h)
	for i := range w * h {
		mask[i] = prob[i] > opts.Thresh
	}
	comps := connectedComponents(prob, mask, w, h)

	regions := make([]Region, 0, len(comps))
	for _, c := range comps {
		bw, bh := c.maxX-c.minX+1, c.maxY-c.minY+1
		if min(bw, bh) < opts.MinSize {
			continue
		}
		score := c.sum / float64(c.count)
		if score < float64(opts.BoxThresh) {
			continue
		}
		box := unclip(geometry.NewBox(c.minX, c.minY, c.maxX+1, c.maxY+1), opts.UnclipRatio)
		regions = append(regions, Region{
			Box:        box.Clamp(image.Rect(0, 0, w, h)),
			Confidence: score,
		})
	}
	return regions
}

// connectedComponents labels mask with a BFS flood fill.
func connectedComponents(prob []float32, mask []bool, w, h int) []compStats {
	visited := make([]bool, w*h)
	queue := make([]int, 0, 64)
	var comps []compStats

	for start := range w * h {
		if !mask[start] || visited[start] {
			continue
		}
		st := compStats{minX: w, minY: h, maxX: -1, maxY: -1}
		visited[start] = true
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			x, y := idx%w, idx/w

			st.count++
			st.sum += float64(prob[idx])
			st.minX, st.maxX = min(st.minX, x), max(st.maxX, x)
			st.minY, st.maxY = min(st.minY, y), max(st.maxY, y)

			neighbors := [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}}
			for _, n := range neighbors {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask[ni] && !visited[ni] {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}
		comps = append(comps, st)
	}
	return comps
}

// unclip grows b by the DB offset distance area*ratio/perimeter.
func unclip(b geometry.Box, ratio float64) geometry.Box {
	if ratio <= 0 {
		return b
	}
	w, h := float64(b.Width()), float64(b.Height())
	if w+h == 0 {
		return b
	}
	d := int(math.Round(w * h * ratio / (2 * (w + h))))
	return geometry.NewBox(b.X0-d, b.Y0-d, b.X1+d, b.Y1+d)
}

// ScaleRegions maps regions from a mapW x mapH probability map onto an
// origW x origH image.
func ScaleRegions(regions []Region, mapW, mapH, origW, origH int) []Region {
	if mapW <= 0 || mapH <= 0 {
		return regions
	}
	sx := float64(origW) / float64(mapW)
	sy := float64(origH) / float64(mapH)
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		b := geometry.NewBox(
			int(math.Floor(float64(r.Box.X0)*sx)),
			int(math.Floor(float64(r.Box.Y0)*sy)),
			int(math.Ceil(float64(r.Box.X1)*sx)),
			int(math.Ceil(float64(r.Box.Y1)*sy)),
		).Clamp(image.Rect(0, 0, origW, origH))
		if b.Empty() {
			continue
		}
		out = append(out, Region{Box: b, Confidence: r.Confidence})
	}
	return out
}

// SortReadingOrder sorts regions top-to-bottom then left-to-right, treating
// regions whose tops differ by less than readingOrderTolerance as one line.
func SortReadingOrder(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Box.Y0 != regions[j].Box.Y0 {
			return regions[i].Box.Y0 < regions[j].Box.Y0
		}
		return regions[i].Box.X0 < regions[j].Box.X0
	})
	for i := 0; i < len(regions)-1; i++ {
		for j := i; j >= 0; j-- {
			a, b := regions[j], regions[j+1]
			if abs(b.Box.Y0-a.Box.Y0) < readingOrderTolerance && b.Box.X0 < a.Box.X0 {
				regions[j], regions[j+1] = b, a
				continue
			}
			break
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
