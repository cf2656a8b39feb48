package channel

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

// AddAWGN adds circularly-symmetric complex Gaussian noise for a target SNR.
//
// SNR is mean(|x|²) over the whole buffer divided by the noise power, so
// zero-valued regions (padding, a zero-filled delay prefix) count toward the
// average. Noise is drawn from rng as real then imaginary part per sample.
func AddAWGN(samples []complex128, snrDB float64, rng *rand.Rand) ([]complex128, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: samples must be non-empty", dsp.ErrInvalidArgument)
	}

	signalPower := dsp.MeanPower(samples)
	noisePower := signalPower / math.Pow(10, snrDB/10)
	sigma := math.Sqrt(noisePower / 2)

	out := make([]complex128, len(samples))
	for i, v := range samples {
		re := rng.NormFloat64()
		im := rng.NormFloat64()
		out[i] = v + complex(sigma*re, sigma*im)
	}
	return out, nil
}
