package ppg

import (
	"fmt"
	"math"
)

// biquad is one normalized second-order section (a0 == 1).
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// butterworthQ gives a maximally flat second-order response.
const butterworthQ = math.Sqrt2 / 2

func lowPass(cutoff, fs float64) biquad {
	w0 := 2 * math.Pi * cutoff / fs
	cosW, alpha := math.Cos(w0), math.Sin(w0)/(2*butterworthQ)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosW) / 2 / a0,
		b1: (1 - cosW) / a0,
		b2: (1 - cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
}

func highPass(cutoff, fs float64) biquad {
	w0 := 2 * math.Pi * cutoff / fs
	cosW, alpha := math.Cos(w0), math.Sin(w0)/(2*butterworthQ)
	a0 := 1 + alpha
	return biquad{
		b0: (1 + cosW) / 2 / a0,
		b1: -(1 + cosW) / a0,
		b2: (1 + cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
}

// bandPass designs the high-pass/low-pass cascade for [low, high] Hz at fs.
func bandPass(low, high, fs float64) ([]biquad, error) {
	nyquist := fs / 2
	switch {
	case low <= 0 || high <= low:
		return nil, fmt.Errorf("invalid pass band %.2f-%.2f Hz", low, high)
	case high >= nyquist:
		return nil, fmt.Errorf("upper cutoff %.2f Hz is not below Nyquist %.2f Hz", high, nyquist)
	}
	return []biquad{highPass(low, fs), lowPass(high, fs)}, nil
}

// run filters x in place (transposed direct form II) starting from the
// steady state for x[0], so a DC offset does not ring at the edges.
func (q biquad) run(x []float64) {
	if len(x) == 0 {
		return
	}
	x0 := x[0]
	y0 := x0 * (q.b0 + q.b1 + q.b2) / (1 + q.a1 + q.a2)
	z1 := y0 - q.b0*x0
	z2 := q.b2*x0 - q.a2*y0
	for i, v := range x {
		y := q.b0*v + z1
		z1 = q.b1*v - q.a1*y + z2
		z2 = q.b2*v - q.a2*y
		x[i] = y
	}
}

// filtfilt applies q forward and backward for zero phase shift, padding
// both ends by odd reflection.
func (q biquad) filtfilt(x []float64, padLen int) []float64 {
	n := len(x)
	if padLen > n-1 {
		padLen = n - 1
	}
	if padLen < 0 {
		padLen = 0
	}

	ext := make([]float64, 0, n+2*padLen)
	for i := padLen; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := 1; i <= padLen; i++ {
		ext = append(ext, 2*x[n-1]-x[n-1-i])
	}

	q.run(ext)
	reverse(ext)
	q.run(ext)
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[padLen:padLen+n])
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
