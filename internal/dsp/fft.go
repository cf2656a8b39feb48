package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Plan computes DFTs of one fixed length. Power-of-two lengths use an
// iterative Cooley-Tukey radix-2 transform; every other length is handed to
// gonum's mixed-radix implementation.
//
// A Plan holds scratch space and must not be shared between goroutines.
type Plan struct {
	n     int
	bits  int
	mixed *fourier.CmplxFFT
}

// NewPlan creates a transform plan for length n.
func NewPlan(n int) *Plan {
	p := &Plan{n: n}
	if n > 1 && isPowerOfTwo(n) {
		for tmp := n; tmp > 1; tmp >>= 1 {
			p.bits++
		}
	} else if n > 1 {
		p.mixed = fourier.NewCmplxFFT(n)
	}
	return p
}

// Len returns the transform length.
func (p *Plan) Len() int { return p.n }

// Forward computes X[k] = sum x[n] exp(-j2πkn/N), unscaled.
// The input is not modified.
func (p *Plan) Forward(x []complex128) []complex128 {
	out := make([]complex128, len(x))
	if p.n <= 1 {
		copy(out, x)
		return out
	}
	if p.mixed != nil {
		return p.mixed.Coefficients(out, x)
	}
	copy(out, x)
	bitReverse(out, p.bits)
	fftIterative(out, false)
	return out
}

// Inverse computes x[n] = 1/N sum X[k] exp(+j2πkn/N).
// The input is not modified.
func (p *Plan) Inverse(x []complex128) []complex128 {
	out := make([]complex128, len(x))
	if p.n <= 1 {
		copy(out, x)
		return out
	}
	if p.mixed != nil {
		out = p.mixed.Sequence(out, x)
	} else {
		copy(out, x)
		bitReverse(out, p.bits)
		fftIterative(out, true)
	}

	// Scale by 1/N
	scale := complex(1.0/float64(p.n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// FFT computes the forward DFT of x for any length.
func FFT(x []complex128) []complex128 {
	return NewPlan(len(x)).Forward(x)
}

// IFFT computes the normalized inverse DFT of x for any length.
func IFFT(x []complex128) []complex128 {
	return NewPlan(len(x)).Inverse(x)
}

func fftIterative(x []complex128, inverse bool) {
	n := len(x)
	sign := -1.0
	if inverse {
		sign = 1.0
	}
	for size := 2; size <= n; size <<= 1 {
		halfSize := size >> 1
		for j := 0; j < halfSize; j++ {
			// Direct twiddle; recurrence drifts on long streams.
			w := cmplx.Rect(1, sign*2*math.Pi*float64(j)/float64(size))
			for start := 0; start < n; start += size {
				u := x[start+j]
				v := w * x[start+j+halfSize]
				x[start+j] = u + v
				x[start+j+halfSize] = u - v
			}
		}
	}
}

func bitReverse(x []complex128, bits int) {
	for i := range x {
		j := reverseBits(i, bits)
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
}

func reverseBits(x, bits int) int {
	result := 0
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
