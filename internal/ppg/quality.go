package ppg

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// beatQuality scores every sample in [0, 1] by how closely the surrounding
// beat matches the average beat shape. It returns nil when fewer than two
// complete beats are available.
func beatQuality(x []float64, peaks []int) []float64 {
	if len(peaks) < 2 {
		return nil
	}

	gaps := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		gaps[i-1] = float64(peaks[i] - peaks[i-1])
	}
	sort.Float64s(gaps)
	period := int(stat.Quantile(0.5, stat.Empirical, gaps, nil))
	pre := int(float64(period) * 0.4)
	post := period - pre
	if pre < 1 || post < 1 {
		return nil
	}

	var (
		segments  [][]float64
		positions []int
	)
	for _, p := range peaks {
		if p-pre < 0 || p+post > len(x) {
			continue
		}
		segments = append(segments, standardize(x[p-pre:p+post]))
		positions = append(positions, p)
	}
	if len(segments) < 2 {
		return nil
	}

	template := make([]float64, pre+post)
	for _, seg := range segments {
		for i, v := range seg {
			template[i] += v
		}
	}
	for i := range template {
		template[i] /= float64(len(segments))
	}

	scores := make([]float64, len(segments))
	for i, seg := range segments {
		r := stat.Correlation(seg, template, nil)
		if math.IsNaN(r) || r < 0 {
			r = 0
		}
		scores[i] = math.Min(r, 1)
	}

	return spreadScores(len(x), positions, scores)
}

// standardize returns seg as z-scores. It divides by the largest deviation
// first so squaring stays finite for any amplitude. A flat segment comes
// back as zeros.
func standardize(seg []float64) []float64 {
	mean := stat.Mean(seg, nil)
	var span float64
	for _, v := range seg {
		span = math.Max(span, math.Abs(v-mean))
	}
	out := make([]float64, len(seg))
	if span == 0 || math.IsInf(span, 0) || math.IsNaN(span) {
		return out
	}
	for i, v := range seg {
		out[i] = (v - mean) / span
	}
	m, sd := stat.MeanStdDev(out, nil)
	if sd == 0 {
		return make([]float64, len(seg))
	}
	for i := range out {
		out[i] = (out[i] - m) / sd
	}
	return out
}

// spreadScores linearly interpolates per-beat scores over sample positions,
// holding the first and last score flat at the edges.
func spreadScores(n int, positions []int, scores []float64) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		switch {
		case i <= positions[0]:
			out[i] = scores[0]
		case i >= positions[len(positions)-1]:
			out[i] = scores[len(scores)-1]
		default:
			j := sort.SearchInts(positions, i)
			if positions[j] == i {
				out[i] = scores[j]
				continue
			}
			left, right := positions[j-1], positions[j]
			frac := float64(i-left) / float64(right-left)
			out[i] = scores[j-1] + frac*(scores[j]-scores[j-1])
		}
	}
	return out
}
