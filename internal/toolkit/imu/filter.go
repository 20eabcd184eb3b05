package imu

import (
	"math"
	"math/cmplx"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Butterworth designs a digital low-pass filter. wn is the cutoff as a
// fraction of the Nyquist frequency. The analog prototype is prewarped and
// mapped with the bilinear transform; b and a are the transfer function
// coefficients with a[0] == 1.
func Butterworth(order int, wn float64) (b, a []float64) {
	const fs = 2.0
	warped := 2 * fs * math.Tan(math.Pi*wn/fs)

	// analog prototype poles on the unit circle's left half, scaled to warped
	poles := make([]complex128, order)
	for i := range poles {
		m := float64(-order + 1 + 2*i)
		poles[i] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*order))) * complex(warped, 0)
	}
	gain := math.Pow(warped, float64(order))

	fs2 := complex(2*fs, 0)
	zPoles := make([]complex128, order)
	denom := complex(1, 0)
	for i, p := range poles {
		zPoles[i] = (fs2 + p) / (fs2 - p)
		denom *= fs2 - p
	}
	gain *= real(1 / denom)

	zeros := make([]complex128, order)
	for i := range zeros {
		zeros[i] = -1
	}

	b = realPoly(zeros)
	for i := range b {
		b[i] *= gain
	}
	return b, realPoly(zPoles)
}

// realPoly returns the real coefficients, highest power first, of the
// monic polynomial with the given roots.
func realPoly(roots []complex128) []float64 {
	c := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(c)+1)
		for i, v := range c {
			next[i] += v
			next[i+1] -= v * r
		}
		c = next
	}
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = real(v)
	}
	return out
}

// LFilter runs x through the transposed direct form II filter (b, a) starting
// from state zi (nil for rest) and returns the output and final state.
func LFilter(b, a, x, zi []float64) (y, zf []float64) {
	b, a = normalize(b, a)
	n := len(a)
	z := make([]float64, n-1)
	copy(z, zi)

	y = make([]float64, len(x))
	for t, v := range x {
		out := b[0]*v + z0(z)
		for i := 0; i < n-2; i++ {
			z[i] = b[i+1]*v + z[i+1] - a[i+1]*out
		}
		if n > 1 {
			z[n-2] = b[n-1]*v - a[n-1]*out
		}
		y[t] = out
	}
	return y, z
}

func z0(z []float64) float64 {
	if len(z) == 0 {
		return 0
	}
	return z[0]
}

// normalize pads b and a to equal length and scales both so a[0] == 1.
func normalize(b, a []float64) ([]float64, []float64) {
	n := max(len(a), len(b))
	nb := make([]float64, n)
	na := make([]float64, n)
	copy(nb, b)
	copy(na, a)
	if na[0] != 1 {
		for i := range nb {
			nb[i] /= na[0]
		}
		for i := 1; i < n; i++ {
			na[i] /= na[0]
		}
		na[0] = 1
	}
	return nb, na
}

// LFilterZI returns the initial state for which a unit step input produces
// a constant output from the start.
func LFilterZI(b, a []float64) []float64 {
	b, a = normalize(b, a)
	var sb, sa float64
	for i := range b {
		sb += b[i]
		sa += a[i]
	}
	dc := sb / sa
	zi := make([]float64, len(a)-1)
	for i := range zi {
		for k := i + 1; k < len(a); k++ {
			zi[i] += b[k] - a[k]*dc
		}
	}
	return zi
}

// FiltFilt filters x forward and backward for zero phase distortion. The
// signal is extended at both ends by odd reflection of 3*max(len(a), len(b))
// samples and each pass starts from the steady state of its first sample.
func FiltFilt(b, a, x []float64) ([]float64, error) {
	pad := 3 * max(len(a), len(b))
	if len(x) <= pad {
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput,
			"the length of the input must be greater than %d samples, got %d", pad, len(x))
	}

	n := len(x)
	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	zi := LFilterZI(b, a)
	scaled := func(s float64) []float64 {
		out := make([]float64, len(zi))
		for i, v := range zi {
			out[i] = v * s
		}
		return out
	}

	y, _ := LFilter(b, a, ext, scaled(ext[0]))
	reverse(y)
	y, _ = LFilter(b, a, y, scaled(y[0]))
	reverse(y)
	return y[pad : pad+n], nil
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
