package ppg

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"gonum.org/v1/gonum/stat"
)

// Systolic peak detector parameters (Elgendi et al., 2013), in seconds.
const (
	peakWindowSeconds = 0.111
	beatWindowSeconds = 0.667
	beatOffset        = 0.02
	minDelaySeconds   = 0.3
)

// detectPeaks returns the sample indices of systolic peaks in a cleaned signal.
func detectPeaks(x []float64, samplingRate int) []int {
	if len(x) == 0 || samplingRate <= 0 {
		return nil
	}
	fs := float64(samplingRate)
	peakWin := windowSamples(peakWindowSeconds, fs)
	beatWin := windowSamples(beatWindowSeconds, fs)
	minDelay := int(math.Round(minDelaySeconds * fs))

	squared := make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			squared[i] = v * v
		}
	}

	maPeak := centeredMovingAverage(squared, peakWin)
	maBeat := centeredMovingAverage(squared, beatWin)
	offset := beatOffset * stat.Mean(squared, nil)

	var peaks []int
	start := -1
	closeBlock := func(end int) {
		if end-start < peakWin {
			return
		}
		best := start
		for i := start + 1; i < end; i++ {
			if x[i] > x[best] {
				best = i
			}
		}
		if len(peaks) == 0 || best-peaks[len(peaks)-1] > minDelay {
			peaks = append(peaks, best)
		}
	}

	for i := range x {
		above := maPeak[i] > maBeat[i]+offset
		switch {
		case above && start < 0:
			start = i
		case !above && start >= 0:
			closeBlock(i)
			start = -1
		}
	}
	if start >= 0 {
		closeBlock(len(x))
	}
	return peaks
}

func windowSamples(seconds, fs float64) int {
	w := int(math.Round(seconds * fs))
	if w < 1 {
		return 1
	}
	return w
}

// centeredMovingAverage is a boxcar average aligned on the window centre.
// Samples the trailing SMA cannot reach take the nearest computed value.
func centeredMovingAverage(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window <= 1 {
		copy(out, x)
		return out
	}
	if len(x) < window {
		m := stat.Mean(x, nil)
		for i := range out {
			out[i] = m
		}
		return out
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	trailing := helper.ChanToSlice(sma.Compute(helper.SliceToChan(x)))

	shift := (window - 1) / 2
	for i := range out {
		k := i - shift
		if k < 0 {
			k = 0
		}
		if k > len(trailing)-1 {
			k = len(trailing) - 1
		}
		out[i] = trailing[k]
	}
	return out
}
