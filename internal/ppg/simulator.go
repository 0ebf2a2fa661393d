package ppg

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

const (
	beatJitterFraction = 0.02
	noiseSigma         = 0.01
	respirationHz      = 0.25
)

// ReferenceSimulator produces a synthetic fingertip pulse trace used as the
// comparison channel. Its output is labelled PulseSensorSimulated and is not
// a measurement.
type ReferenceSimulator struct {
	opts Options

	mu  sync.Mutex
	rng *rand.Rand
}

// NewReferenceSimulator seeds from the clock when rng is nil.
func NewReferenceSimulator(opts Options, rng *rand.Rand) *ReferenceSimulator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return &ReferenceSimulator{opts: opts, rng: rng}
}

// NewSeededSimulator is deterministic for a given seed.
func NewSeededSimulator(opts Options, seed uint64) *ReferenceSimulator {
	return NewReferenceSimulator(opts, rand.New(rand.NewPCG(seed, seed)))
}

// Simulate returns exactly samplingRate*durationSeconds samples.
func (s *ReferenceSimulator) Simulate(samplingRate, durationSeconds int) (SignalBuffer, error) {
	switch {
	case samplingRate <= 0:
		return SignalBuffer{}, &SimulationError{Message: fmt.Sprintf("sampling rate must be positive, got %d", samplingRate)}
	case durationSeconds <= 0:
		return SignalBuffer{}, &SimulationError{Message: fmt.Sprintf("duration must be positive, got %d", durationSeconds)}
	case s.opts.MaxSamplingRate > 0 && samplingRate > s.opts.MaxSamplingRate:
		return SignalBuffer{}, &SimulationError{Message: fmt.Sprintf("sampling rate %d exceeds maximum %d", samplingRate, s.opts.MaxSamplingRate)}
	case s.opts.MaxDurationSeconds > 0 && durationSeconds > s.opts.MaxDurationSeconds:
		return SignalBuffer{}, &SimulationError{Message: fmt.Sprintf("duration %d exceeds maximum %d", durationSeconds, s.opts.MaxDurationSeconds)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bpm := s.opts.ReferenceBPM + s.rng.NormFloat64()*s.opts.ReferenceJitterBPM
	limit := 3 * s.opts.ReferenceJitterBPM
	bpm = math.Max(s.opts.ReferenceBPM-limit, math.Min(s.opts.ReferenceBPM+limit, bpm))

	fs := float64(samplingRate)
	n := samplingRate * durationSeconds
	samples := make([]float64, n)

	period := s.nextPeriod(bpm)
	phase := 0.0
	for i := 0; i < n; i++ {
		t := float64(i) / fs
		baseline := 0.05 * math.Sin(2*math.Pi*respirationHz*t)
		samples[i] = pulseShape(phase) + baseline + s.rng.NormFloat64()*noiseSigma

		phase += 1 / (period * fs)
		if phase >= 1 {
			phase -= 1
			period = s.nextPeriod(bpm)
		}
	}

	return SignalBuffer{
		Samples:      samples,
		SamplingRate: samplingRate,
		Source:       models.SourcePulseSensorSimulated,
	}, nil
}

// nextPeriod draws one beat length in seconds around the session rate.
func (s *ReferenceSimulator) nextPeriod(bpm float64) float64 {
	base := 60 / bpm
	return base * (1 + s.rng.NormFloat64()*beatJitterFraction)
}

// pulseShape is one cardiac cycle over phase in [0, 1): a systolic wave
// followed by a smaller diastolic wave.
func pulseShape(phase float64) float64 {
	return gauss(phase, 0.25, 0.1) + 0.25*gauss(phase, 0.55, 0.1)
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}
