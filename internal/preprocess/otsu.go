package preprocess

import "image"

// Histogram returns the 256-bin intensity histogram of gray.
func Histogram(gray *image.Gray) [256]int {
	var hist [256]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride : (y-b.Min.Y)*gray.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// OtsuThreshold returns the global threshold t that maximizes the
// between-class variance of the classes {<=t} and {>t}. Ties resolve to the
// lowest t. A uniform image yields 0.
func OtsuThreshold(gray *image.Gray) uint8 {
	hist := Histogram(gray)
	return otsuFromHistogram(hist)
}

func otsuFromHistogram(hist [256]int) uint8 {
	total := 0
	var sumAll float64
	for i, c := range hist {
		total += c
		sumAll += float64(i) * float64(c)
	}
	if total == 0 {
		return 0
	}

	var (
		best    uint8
		bestVar = -1.0
		wB      int
		sumB    float64
	)
	for t := range 256 {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = uint8(t)
		}
	}
	return best
}
