package recognizer

import "math"

// DecodedSequence holds CTC-decoded indices and per-character probabilities.
type DecodedSequence struct {
	Indices       []int
	Probs         []float64
	Collapsed     []int
	CollapsedProb []float64
}

// argmax returns index of max value and the value.
func argmax(v []float32) (int, float32) {
	if len(v) == 0 {
		return -1, 0
	}
	idx, best := 0, v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > best {
			best, idx = v[i], i
		}
	}
	return idx, best
}

// probOfIndex returns v[idx] when v already is a probability distribution
// and its softmax probability otherwise.
func probOfIndex(v []float32, idx int) float64 {
	if len(v) == 0 || idx < 0 || idx >= len(v) {
		return 0
	}
	var sum float64
	peak := v[0]
	isProb := true
	for _, x := range v {
		sum += float64(x)
		if x < 0 || x > 1 {
			isProb = false
		}
		peak = max(peak, x)
	}
	if isProb && sum > 0.99 && sum < 1.01 {
		return float64(v[idx])
	}
	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - peak))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-peak)) / denom
}

// CTCCollapse drops blanks and merges repeats not separated by a blank.
func CTCCollapse(indices []int, probs []float64, blank int) ([]int, []float64) {
	outIdx := make([]int, 0, len(indices))
	outProb := make([]float64, 0, len(indices))
	prev := -1
	for i, idx := range indices {
		if idx == blank {
			prev = idx
			continue
		}
		if idx == prev {
			continue
		}
		outIdx = append(outIdx, idx)
		p := 0.0
		if i < len(probs) {
			p = probs[i]
		}
		outProb = append(outProb, p)
		prev = idx
	}
	return outIdx, outProb
}

// DecodeCTCGreedy decodes model output with greedy CTC. The layout is
// [N, T, C], or [N, C, T] when classesFirst is set.
func DecodeCTCGreedy(logits []float32, shape []int64, blank int, classesFirst bool) []DecodedSequence {
	dims := trimTrailingOnes(shape)
	if len(dims) != 3 {
		return nil
	}
	n := int(dims[0])
	tDim, cDim := int(dims[1]), int(dims[2])
	if classesFirst {
		tDim, cDim = cDim, tDim
	}
	if n <= 0 || tDim <= 0 || cDim <= 0 || len(logits) < n*tDim*cDim {
		return nil
	}

	out := make([]DecodedSequence, n)
	step := make([]float32, cDim)
	for b := range n {
		start := b * tDim * cDim
		indices := make([]int, tDim)
		probs := make([]float64, tDim)
		for t := range tDim {
			if classesFirst {
				for k := range cDim {
					step[k] = logits[start+k*tDim+t]
				}
			} else {
				copy(step, logits[start+t*cDim:start+(t+1)*cDim])
			}
			idx, _ := argmax(step)
			indices[t] = idx
			probs[t] = probOfIndex(step, idx)
		}
		collIdx, collProb := CTCCollapse(indices, probs, blank)
		out[b] = DecodedSequence{Indices: indices, Probs: probs, Collapsed: collIdx, CollapsedProb: collProb}
	}
	return out
}

// classesFirst reports whether the class dimension precedes the time
// dimension, given the expected number of classes.
func classesFirst(shape []int64, numClasses int) bool {
	dims := trimTrailingOnes(shape)
	if len(dims) != 3 {
		return false
	}
	return int(dims[2]) != numClasses && int(dims[1]) == numClasses
}

func trimTrailingOnes(shape []int64) []int64 {
	dims := append([]int64(nil), shape...)
	for len(dims) > 3 && dims[len(dims)-1] == 1 {
		dims = dims[:len(dims)-1]
	}
	return dims
}

// SequenceConfidence returns the mean per-character probability; 0 if empty.
func SequenceConfidence(charProbs []float64) float64 {
	if len(charProbs) == 0 {
		return 0
	}
	var s float64
	for _, p := range charProbs {
		s += p
	}
	return s / float64(len(charProbs))
}
