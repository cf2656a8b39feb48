package channel

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

// fracEpsilon is the fractional delay below which no shift is applied.
const fracEpsilon = 1e-12

// ApplyIntegerDelay shifts x right by delay samples, zero-filling the front
// and truncating the tail. The length is preserved.
func ApplyIntegerDelay(x []complex128, delay int) ([]complex128, error) {
	if delay < 0 {
		return nil, fmt.Errorf("%w: delay must be non-negative", dsp.ErrInvalidArgument)
	}
	out := make([]complex128, len(x))
	if delay < len(x) {
		copy(out[delay:], x[:len(x)-delay])
	}
	return out, nil
}

// ApplyFractionalDelay delays x by frac samples with a linear phase ramp
// exp(-j·2π·k·frac/N) in the frequency domain.
//
// The shift is circular: samples pushed past the end wrap to the front.
func ApplyFractionalDelay(x []complex128, frac float64) ([]complex128, error) {
	if frac < 0 {
		return nil, fmt.Errorf("%w: fractional delay must be non-negative", dsp.ErrInvalidArgument)
	}
	if frac < fracEpsilon || len(x) == 0 {
		return dsp.Clone(x), nil
	}

	plan := dsp.NewPlan(len(x))
	spectrum := plan.Forward(x)
	n := float64(len(x))
	for k := range spectrum {
		spectrum[k] *= cmplx.Rect(1, -2*math.Pi*float64(k)*frac/n)
	}
	return plan.Inverse(spectrum), nil
}

// ApplyDelay splits delaySamples into integer and fractional parts and
// applies the integer shift first. A delay of len(x) or more, +Inf included,
// yields all zeros.
func ApplyDelay(x []complex128, delaySamples float64) ([]complex128, error) {
	if delaySamples < 0 || math.IsNaN(delaySamples) {
		return nil, fmt.Errorf("%w: delay_samples must be non-negative", dsp.ErrInvalidArgument)
	}

	whole := math.Floor(delaySamples)
	if whole >= float64(len(x)) {
		return make([]complex128, len(x)), nil
	}
	out, err := ApplyIntegerDelay(x, int(whole))
	if err != nil {
		return nil, err
	}
	if frac := delaySamples - whole; frac > fracEpsilon {
		return ApplyFractionalDelay(out, frac)
	}
	return out, nil
}
