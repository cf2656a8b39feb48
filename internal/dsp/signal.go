package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// MeanPower returns mean(|x|²). It is zero for an empty slice.
func MeanPower(x []complex128) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += real(v)*real(v) + imag(v)*imag(v)
	}
	return sum / float64(len(x))
}

// Rotate multiplies sample n by exp(j·2π·freqHz·n/fsHz) and returns a new
// slice. A negative freqHz derotates.
func Rotate(x []complex128, fsHz, freqHz float64) ([]complex128, error) {
	if fsHz <= 0 {
		return nil, fmt.Errorf("%w: fs_hz must be positive", ErrInvalidArgument)
	}
	out := make([]complex128, len(x))
	step := 2 * math.Pi * freqHz / fsHz
	for n, v := range x {
		out[n] = v * cmplx.Rect(1, step*float64(n))
	}
	return out, nil
}

// Clone returns a copy of x.
func Clone(x []complex128) []complex128 {
	out := make([]complex128, len(x))
	copy(out, x)
	return out
}

// BlockShape checks that block is a non-empty rectangular 2-D buffer and
// returns its dimensions.
func BlockShape(block [][]complex128) (rows, cols int, err error) {
	if len(block) == 0 {
		return 0, 0, fmt.Errorf("%w: block must have at least one row", ErrInvalidArgument)
	}
	cols = len(block[0])
	for i, row := range block {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("%w: row %d has %d samples, want %d", ErrInvalidArgument, i, len(row), cols)
		}
	}
	return len(block), cols, nil
}
