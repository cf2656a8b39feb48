package channel

import (
	"math"
	"math/rand"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

// RicianGains draws one block-fading gain per OFDM symbol:
//
//	h = ν + σ·(N₁ + jN₂),  ν = sqrt(K/(K+1)),  σ = sqrt(1/(2(K+1)))
//
// with K = 10^(kDB/10), so E[|h|²] = 1.
func RicianGains(n int, kDB float64, rng *rand.Rand) []complex128 {
	nu, sigma := nuSigma(math.Pow(10, kDB/10))
	gains := make([]complex128, n)
	for s := range gains {
		re := rng.NormFloat64()
		im := rng.NormFloat64()
		gains[s] = complex(nu+sigma*re, sigma*im)
	}
	return gains
}

func nuSigma(k float64) (nu, sigma float64) {
	nu = math.Sqrt(k / (k + 1))
	sigma = math.Sqrt(1 / (2 * (k + 1)))
	return nu, sigma
}

// ApplyRicianFading scales every sample of symbol s in a
// (n_symbols, symbol_len) block by its own Rician gain h[s]. The gain is flat
// across the symbol.
func ApplyRicianFading(block [][]complex128, kDB float64, rng *rand.Rand) ([][]complex128, error) {
	rows, _, err := dsp.BlockShape(block)
	if err != nil {
		return nil, err
	}

	gains := RicianGains(rows, kDB, rng)
	out := make([][]complex128, rows)
	for s, row := range block {
		faded := make([]complex128, len(row))
		for i, v := range row {
			faded[i] = v * gains[s]
		}
		out[s] = faded
	}
	return out, nil
}
