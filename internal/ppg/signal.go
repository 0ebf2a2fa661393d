// Package ppg turns a raw photoplethysmography trace into heart-rate and HRV metrics.
//
// The pipeline has three stages: Preprocess (band-pass + detrend), Extract
// (peak detection, quality, interval statistics) and, for the comparison
// channel, Simulate (a synthetic pulse reference). Analyzer drives all three.
package ppg

import (
	"github.com/irfndi/tanya-ai-go/internal/models"
)

// Options tunes the pipeline. The zero value is not usable; start from DefaultOptions.
type Options struct {
	DefaultDurationSeconds int
	DefaultSamplingRate    int
	DefaultROI             models.ROI
	MinDurationSeconds     int
	LowCutHz               float64
	HighCutHz              float64
	DetrendOrder           int
	ReferenceBPM           float64
	ReferenceJitterBPM     float64
	MaxDurationSeconds     int
	MaxSamplingRate        int
}

// DefaultOptions matches the values the mobile client was built against.
func DefaultOptions() Options {
	return Options{
		DefaultDurationSeconds: 20,
		DefaultSamplingRate:    30,
		DefaultROI:             models.ROI{X: 0.425, Y: 0.425, Width: 0.15, Height: 0.15},
		MinDurationSeconds:     15,
		LowCutHz:               0.5,
		HighCutHz:              2.5,
		DetrendOrder:           1,
		ReferenceBPM:           70,
		ReferenceJitterBPM:     5,
		MaxDurationSeconds:     300,
		MaxSamplingRate:        1000,
	}
}

// SignalBuffer is a raw sample sequence at a fixed rate.
type SignalBuffer struct {
	Samples      []float64
	SamplingRate int
	Source       models.SignalSource
}

// RequiredSamples is the minimum length for the given rate and window.
func RequiredSamples(samplingRate, minSeconds int) int {
	return samplingRate * minSeconds
}

// Validate checks the minimum recording window.
func (b SignalBuffer) Validate(minSeconds int) error {
	required := RequiredSamples(b.SamplingRate, minSeconds)
	if len(b.Samples) < required {
		return &InsufficientDataError{Required: required, Actual: len(b.Samples)}
	}
	return nil
}

// CleanedSignal is a filtered, detrended buffer of the same length as its input.
type CleanedSignal struct {
	Samples      []float64
	SamplingRate int
	Source       models.SignalSource
}
