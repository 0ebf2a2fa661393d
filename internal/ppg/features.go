package ppg

import (
	"fmt"
	"math"
	"sort"

	"github.com/irfndi/tanya-ai-go/internal/models"
	"gonum.org/v1/gonum/stat"
)

// FeatureExtractor derives heart rate, HRV and signal quality from a cleaned trace.
type FeatureExtractor struct {
	opts Options
}

func NewFeatureExtractor(opts Options) *FeatureExtractor {
	return &FeatureExtractor{opts: opts}
}

// Extract never fails for lack of beats: such metrics come back unavailable.
// Detector failures, including panics, are returned as *ProcessingError.
func (f *FeatureExtractor) Extract(clean CleanedSignal) (metrics models.SignalMetrics, err error) {
	raw := SignalBuffer{Samples: clean.Samples, SamplingRate: clean.SamplingRate, Source: clean.Source}
	if err := raw.Validate(f.opts.MinDurationSeconds); err != nil {
		return models.SignalMetrics{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			metrics = models.SignalMetrics{}
			err = &ProcessingError{Source: clean.Source, Message: fmt.Sprint(r)}
		}
	}()

	if clean.SamplingRate <= 0 {
		return models.SignalMetrics{}, &ProcessingError{Source: clean.Source, Message: "sampling rate must be positive"}
	}

	peaks := detectPeaks(clean.Samples, clean.SamplingRate)
	quality := beatQuality(clean.Samples, peaks)
	intervals := beatIntervals(peaks, clean.SamplingRate)

	metrics = models.SignalMetrics{
		Source:        clean.Source,
		Signal:        clean.Samples,
		Peaks:         peaks,
		Quality:       quality,
		HeartRate:     heartRate(intervals),
		RMSSD:         rmssd(intervals),
		SDNN:          sdnn(intervals),
		MeanQuality:   meanQuality(quality),
		IntervalStats: intervalStats(intervals),
	}
	return metrics, nil
}

// beatIntervals converts peak positions into beat-to-beat intervals in milliseconds.
func beatIntervals(peaks []int, samplingRate int) []float64 {
	if len(peaks) < 2 {
		return nil
	}
	out := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		out[i-1] = float64(peaks[i]-peaks[i-1]) / float64(samplingRate) * 1000
	}
	return out
}

// heartRate is the mean of the instantaneous rates 60000/RR.
func heartRate(intervals []float64) models.Metric {
	if len(intervals) == 0 {
		return models.Unavailable()
	}
	rates := make([]float64, len(intervals))
	for i, rr := range intervals {
		rates[i] = 60000 / rr
	}
	return finite(stat.Mean(rates, nil))
}

func rmssd(intervals []float64) models.Metric {
	if len(intervals) < 2 {
		return models.Unavailable()
	}
	sum := 0.0
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sum += d * d
	}
	return finite(math.Sqrt(sum / float64(len(intervals)-1)))
}

// sdnn uses the sample (n-1) standard deviation.
func sdnn(intervals []float64) models.Metric {
	if len(intervals) < 2 {
		return models.Unavailable()
	}
	return finite(stat.StdDev(intervals, nil))
}

func meanQuality(quality []float64) models.Metric {
	if len(quality) == 0 {
		return models.Unavailable()
	}
	return finite(stat.Mean(quality, nil))
}

func intervalStats(intervals []float64) models.IntervalMetrics {
	if len(intervals) == 0 {
		return models.IntervalMetrics{}
	}
	sorted := append([]float64(nil), intervals...)
	sort.Float64s(sorted)

	over50 := 0
	for i := 1; i < len(intervals); i++ {
		if math.Abs(intervals[i]-intervals[i-1]) > 50 {
			over50++
		}
	}
	pnn50 := models.Unavailable()
	if len(intervals) > 1 {
		pnn50 = finite(float64(over50) / float64(len(intervals)-1) * 100)
	}

	return models.IntervalMetrics{
		MeanNN:   finite(stat.Mean(intervals, nil)),
		MedianNN: finite(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		MinNN:    finite(sorted[0]),
		MaxNN:    finite(sorted[len(sorted)-1]),
		PNN50:    pnn50,
		RateMean: finite(60000 / stat.Mean(intervals, nil)),
	}
}

func finite(v float64) models.Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return models.Unavailable()
	}
	return models.Computed(v)
}
