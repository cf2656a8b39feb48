package modem

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

// Cyclic-prefix based synchronization for the OFDM receiver.
//
// The CP is a copy of the symbol tail, so correlating the two exposes both
// the phase advance accumulated over n_fft samples (carrier offset) and the
// position of the symbol boundary (timing offset).

// EstimateCFOFromCP estimates the carrier frequency offset of one OFDM symbol
// with its CP (length n_fft+cp_len):
//
//	p = Σ rx[n_fft : n_fft+cp_len] · conj(rx[0 : cp_len])
//	cfo = angle(p) / n_fft · fs / 2π
//
// The estimate is unambiguous only for |cfo| < fs/(2·n_fft), half a
// subcarrier spacing; beyond that the angle wraps.
func EstimateCFOFromCP(rx []complex128, nFFT, cpLen int, fsHz float64) (float64, error) {
	if nFFT <= 0 {
		return 0, fmt.Errorf("%w: n_fft must be positive", dsp.ErrInvalidArgument)
	}
	if cpLen <= 0 {
		return 0, fmt.Errorf("%w: cp_len must be positive", dsp.ErrInvalidArgument)
	}
	if fsHz <= 0 {
		return 0, fmt.Errorf("%w: fs_hz must be positive", dsp.ErrInvalidArgument)
	}
	if len(rx) != nFFT+cpLen {
		return 0, fmt.Errorf("%w: rx length %d must be n_fft + cp_len = %d", dsp.ErrInvalidArgument, len(rx), nFFT+cpLen)
	}

	var p complex128
	for m := 0; m < cpLen; m++ {
		p += rx[nFFT+m] * cmplx.Conj(rx[m])
	}
	eps := cmplx.Phase(p) / float64(nFFT)
	return eps * fsHz / (2 * math.Pi), nil
}

// CompensateCFO derotates x by cfoHz, the conjugate of the channel's CFO
// rotation.
func CompensateCFO(x []complex128, fsHz, cfoHz float64) ([]complex128, error) {
	return dsp.Rotate(x, fsHz, -cfoHz)
}

// EstimateTimingOffsetCP searches integer offsets d in [0, 2·cp_len] and
// returns the one maximizing |Σ_s Σ_m rx[d+s·L+n_fft+m] · conj(rx[d+s·L+m])|,
// L = n_fft+cp_len. The search never runs past len(rx)-L, and returns 0
// when rx holds no more than one symbol. Symbols that no longer fit in rx at
// a given offset are left out of its metric.
func EstimateTimingOffsetCP(rx []complex128, nFFT, cpLen, nSymbols int) (int, error) {
	if nFFT <= 0 || cpLen <= 0 || nSymbols <= 0 {
		return 0, fmt.Errorf("%w: n_fft, cp_len, n_symbols must be positive", dsp.ErrInvalidArgument)
	}

	symLen := nFFT + cpLen
	maxDelay := 0
	if len(rx) > symLen {
		maxDelay = min(2*cpLen, len(rx)-symLen)
	}

	bestD := 0
	bestMetric := -1.0
	for d := 0; d <= maxDelay; d++ {
		var metric complex128
		for s := 0; s < nSymbols; s++ {
			start := d + s*symLen
			if start+symLen > len(rx) {
				break
			}
			for m := 0; m < cpLen; m++ {
				metric += rx[start+nFFT+m] * cmplx.Conj(rx[start+m])
			}
		}
		if mag := cmplx.Abs(metric); mag > bestMetric {
			bestMetric = mag
			bestD = d
		}
	}
	return bestD, nil
}

// CompensateIntegerDelay shifts x left by delay samples, zero-filling the
// tail so the length is preserved.
func CompensateIntegerDelay(x []complex128, delay int) ([]complex128, error) {
	if delay < 0 {
		return nil, fmt.Errorf("%w: delay must be non-negative", dsp.ErrInvalidArgument)
	}
	out := make([]complex128, len(x))
	if delay < len(x) {
		copy(out, x[delay:])
	}
	return out, nil
}
