package channel

import "github.com/jeongseonghan/ntn-linksim/internal/dsp"

// ApplyCFO rotates sample n by exp(j·2π·cfoHz·n/fsHz). Carrier offset and
// Doppler shift are the same baseband rotation.
func ApplyCFO(x []complex128, fsHz, cfoHz float64) ([]complex128, error) {
	return dsp.Rotate(x, fsHz, cfoHz)
}
