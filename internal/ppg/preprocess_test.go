package ppg

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

func sineWave(freqHz float64, samplingRate, n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(samplingRate))
	}
	return out
}

func webcamBuffer(samples []float64, rate int) SignalBuffer {
	return SignalBuffer{Samples: samples, SamplingRate: rate, Source: models.SourceWebcam}
}

func TestPreprocess_PreservesLengthAndFiniteness(t *testing.T) {
	p := NewPreprocessor(DefaultOptions())

	for _, n := range []int{450, 451, 600, 1800} {
		raw := sineWave(1.2, 30, n, 1)
		for i := range raw {
			raw[i] += 0.01 * float64(i)
		}

		clean, err := p.Preprocess(webcamBuffer(raw, 30))
		require.NoError(t, err)
		assert.Len(t, clean.Samples, n)
		assert.Equal(t, 30, clean.SamplingRate)
		assert.Equal(t, models.SourceWebcam, clean.Source)
		for _, v := range clean.Samples {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}

func TestPreprocess_IsDeterministic(t *testing.T) {
	p := NewPreprocessor(DefaultOptions())
	raw := sineWave(1.1, 30, 600, 2)
	for i := range raw {
		raw[i] += math.Sin(float64(i) * 0.37)
	}
	input := append([]float64(nil), raw...)

	first, err := p.Preprocess(webcamBuffer(raw, 30))
	require.NoError(t, err)
	second, err := p.Preprocess(webcamBuffer(raw, 30))
	require.NoError(t, err)

	assert.Equal(t, first.Samples, second.Samples)
	assert.Equal(t, input, raw, "input must not be modified")
}

func TestPreprocess_RemovesDriftAndKeepsPulse(t *testing.T) {
	p := NewPreprocessor(DefaultOptions())
	pulse := sineWave(1.2, 30, 900, 1)
	raw := make([]float64, len(pulse))
	for i := range raw {
		raw[i] = pulse[i] + 50 + 0.05*float64(i)
	}

	clean, err := p.Preprocess(webcamBuffer(raw, 30))
	require.NoError(t, err)

	assert.InDelta(t, 0, stat.Mean(clean.Samples, nil), 0.05)
	// ignore the edges where the reflection padding still shows
	inner := clean.Samples[90 : len(clean.Samples)-90]
	ref := pulse[90 : len(pulse)-90]
	assert.Greater(t, stat.Correlation(inner, ref, nil), 0.95)
}

func TestPreprocess_Errors(t *testing.T) {
	p := NewPreprocessor(DefaultOptions())

	nan := sineWave(1.2, 30, 450, 1)
	nan[10] = math.NaN()

	tests := []struct {
		name    string
		buf     SignalBuffer
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "too short",
			buf:  webcamBuffer(make([]float64, 200), 30),
			checkFn: func(t *testing.T, err error) {
				var ierr *InsufficientDataError
				require.True(t, errors.As(err, &ierr))
				assert.Equal(t, 450, ierr.Required)
				assert.Equal(t, 200, ierr.Actual)
			},
		},
		{
			name: "constant signal",
			buf:  webcamBuffer(constant(450, 3.3), 30),
			checkFn: func(t *testing.T, err error) {
				var perr *PreprocessingError
				require.True(t, errors.As(err, &perr))
				assert.Contains(t, perr.Error(), "no variation")
			},
		},
		{
			name: "non-finite sample",
			buf:  webcamBuffer(nan, 30),
			checkFn: func(t *testing.T, err error) {
				var perr *PreprocessingError
				require.True(t, errors.As(err, &perr))
			},
		},
		{
			name: "cutoff above nyquist",
			buf:  webcamBuffer(sineWave(0.8, 4, 60, 1), 4),
			checkFn: func(t *testing.T, err error) {
				var perr *PreprocessingError
				require.True(t, errors.As(err, &perr))
				assert.Contains(t, perr.Error(), "Nyquist")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Preprocess(tt.buf)
			require.Error(t, err)
			tt.checkFn(t, err)
		})
	}
}

func TestDetrend_RemovesPolynomial(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		ti := float64(i)
		x[i] = 3 + 0.5*ti
	}

	out, err := detrend(x, 1)
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-9)
	}

	quad := make([]float64, 100)
	for i := range quad {
		ti := float64(i) / 10
		quad[i] = 1 - ti + 0.3*ti*ti
	}
	out, err = detrend(quad, 2)
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestBandPass_Design(t *testing.T) {
	_, err := bandPass(0.5, 2.5, 30)
	assert.NoError(t, err)

	_, err = bandPass(2.5, 0.5, 30)
	assert.Error(t, err)

	_, err = bandPass(0.5, 2.5, 5)
	assert.Error(t, err)
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
