package modem

import (
	"fmt"
	"math"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

// BitsPerSymbol is the number of bits carried by one QPSK symbol.
const BitsPerSymbol = 2

var qpskScale = 1.0 / math.Sqrt2

// Modulate maps bits to unit-power QPSK symbols.
// Bits are packed as bytes (0 or 1 each); each pair (b0, b1) maps to
// ((1-2·b0) + j(1-2·b1)) / √2.
func Modulate(bits []byte) ([]complex128, error) {
	if len(bits)%BitsPerSymbol != 0 {
		return nil, fmt.Errorf("%w: bit count %d is not even", dsp.ErrInvalidArgument, len(bits))
	}

	symbols := make([]complex128, len(bits)/BitsPerSymbol)
	for i := range symbols {
		b0, b1 := bits[2*i], bits[2*i+1]
		if b0 > 1 || b1 > 1 {
			return nil, fmt.Errorf("%w: bit values must be 0 or 1, got %d at pair %d", dsp.ErrInvalidArgument, max(b0, b1), i)
		}
		symbols[i] = complex(float64(1-2*int(b0))*qpskScale, float64(1-2*int(b1))*qpskScale)
	}
	return symbols, nil
}

// DemodulateHard makes a sign decision on each axis: a negative real part
// yields b0 = 1, a negative imaginary part yields b1 = 1.
func DemodulateHard(symbols []complex128) []byte {
	bits := make([]byte, 0, len(symbols)*BitsPerSymbol)
	for _, s := range symbols {
		bits = append(bits, signBit(real(s)), signBit(imag(s)))
	}
	return bits
}

func signBit(v float64) byte {
	if v < 0 {
		return 1
	}
	return 0
}

// CountBitErrors returns the number of positions where a and b differ,
// compared over the shorter of the two.
func CountBitErrors(a, b []byte) int {
	n := min(len(a), len(b))
	errors := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			errors++
		}
	}
	return errors
}
