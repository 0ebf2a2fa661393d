package ppg

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Preprocessor band-limits a raw trace to the cardiac band and removes slow drift.
type Preprocessor struct {
	opts Options
}

func NewPreprocessor(opts Options) *Preprocessor {
	return &Preprocessor{opts: opts}
}

// Preprocess returns a cleaned signal of the same length as raw. It is a
// pure function of its input.
func (p *Preprocessor) Preprocess(raw SignalBuffer) (CleanedSignal, error) {
	if err := raw.Validate(p.opts.MinDurationSeconds); err != nil {
		return CleanedSignal{}, err
	}
	if raw.SamplingRate <= 0 {
		return CleanedSignal{}, &PreprocessingError{Message: "sampling rate must be positive"}
	}
	for _, v := range raw.Samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return CleanedSignal{}, &PreprocessingError{Message: "signal contains non-finite samples"}
		}
	}
	if stat.StdDev(raw.Samples, nil) == 0 {
		return CleanedSignal{}, &PreprocessingError{Message: "signal has no variation"}
	}

	fs := float64(raw.SamplingRate)
	sections, err := bandPass(p.opts.LowCutHz, p.opts.HighCutHz, fs)
	if err != nil {
		return CleanedSignal{}, &PreprocessingError{Message: "band-pass design", Err: err}
	}

	// three seconds of reflection covers the high-pass settling time
	padLen := 3 * raw.SamplingRate
	filtered := raw.Samples
	for _, section := range sections {
		filtered = section.filtfilt(filtered, padLen)
	}

	cleaned, err := detrend(filtered, p.opts.DetrendOrder)
	if err != nil {
		return CleanedSignal{}, &PreprocessingError{Message: "detrend", Err: err}
	}
	for _, v := range cleaned {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return CleanedSignal{}, &PreprocessingError{Message: "filter produced non-finite output"}
		}
	}

	return CleanedSignal{
		Samples:      cleaned,
		SamplingRate: raw.SamplingRate,
		Source:       raw.Source,
	}, nil
}

// detrend subtracts the least-squares polynomial of the given order,
// fitted on a time axis scaled to [-1, 1].
func detrend(x []float64, order int) ([]float64, error) {
	n := len(x)
	if order < 0 {
		order = 0
	}
	if order > n-1 {
		order = n - 1
	}

	cols := order + 1
	design := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		t := 0.0
		if n > 1 {
			t = 2*float64(i)/float64(n-1) - 1
		}
		p := 1.0
		for k := 0; k < cols; k++ {
			design.Set(i, k, p)
			p *= t
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(n, append([]float64(nil), x...))); err != nil {
		return nil, err
	}
	var trend mat.VecDense
	trend.MulVec(design, &coef)

	out := make([]float64, n)
	for i := range x {
		out[i] = x[i] - trend.AtVec(i)
	}
	return out, nil
}
