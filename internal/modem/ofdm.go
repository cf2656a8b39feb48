package modem

import (
	"fmt"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

// Params is the OFDM numerology of one simulated frame.
type Params struct {
	NFFT     int `json:"n_fft" yaml:"n_fft"`
	NUsed    int `json:"n_used" yaml:"n_used"`
	CPLen    int `json:"cp_len" yaml:"cp_len"`
	NSymbols int `json:"n_symbols" yaml:"n_symbols"`
}

// Validate checks the invariants every waveform stage relies on.
func (p Params) Validate() error {
	if p.NFFT <= 0 {
		return fmt.Errorf("%w: n_fft must be positive", dsp.ErrInvalidArgument)
	}
	if p.NUsed <= 0 || p.NUsed >= p.NFFT {
		return fmt.Errorf("%w: n_used must be in (0, n_fft)", dsp.ErrInvalidArgument)
	}
	if p.NUsed%2 != 0 {
		return fmt.Errorf("%w: n_used must be even", dsp.ErrInvalidArgument)
	}
	if p.CPLen < 0 || p.CPLen >= p.NFFT {
		return fmt.Errorf("%w: cp_len must be in [0, n_fft)", dsp.ErrInvalidArgument)
	}
	if p.NSymbols <= 0 {
		return fmt.Errorf("%w: n_symbols must be positive", dsp.ErrInvalidArgument)
	}
	return nil
}

// SymbolLen returns the number of samples in one OFDM symbol including its CP.
func (p Params) SymbolLen() int {
	return p.NFFT + p.CPLen
}

// FrameLen returns the number of serialized samples in the whole frame.
func (p Params) FrameLen() int {
	return p.NSymbols * p.SymbolLen()
}

// NumBits returns the number of payload bits carried by the frame.
func (p Params) NumBits() int {
	return p.NSymbols * p.NUsed * BitsPerSymbol
}

// UsedSubcarrierIndices returns the active FFT bins: the K negative-most
// bins followed by the K lowest positive bins, K = nUsed/2. DC and the
// band edge stay empty.
func UsedSubcarrierIndices(nFFT, nUsed int) ([]int, error) {
	if nUsed%2 != 0 {
		return nil, fmt.Errorf("%w: n_used must be even", dsp.ErrInvalidArgument)
	}
	if nUsed >= nFFT {
		return nil, fmt.Errorf("%w: n_used must be less than n_fft", dsp.ErrInvalidArgument)
	}

	k := nUsed / 2
	idx := make([]int, 0, nUsed)
	for i := nFFT - k; i < nFFT; i++ {
		idx = append(idx, i)
	}
	for i := 1; i <= k; i++ {
		idx = append(idx, i)
	}
	return idx, nil
}

// MapToGrid scatters (n_symbols, n_used) data symbols into a zeroed
// (n_symbols, n_fft) frequency grid.
func MapToGrid(symbols [][]complex128, p Params) ([][]complex128, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkShape(symbols, p.NSymbols, p.NUsed, "symbols"); err != nil {
		return nil, err
	}
	idx, err := UsedSubcarrierIndices(p.NFFT, p.NUsed)
	if err != nil {
		return nil, err
	}

	grid := make([][]complex128, p.NSymbols)
	for s, row := range symbols {
		grid[s] = make([]complex128, p.NFFT)
		for i, k := range idx {
			grid[s][k] = row[i]
		}
	}
	return grid, nil
}

// ExtractUsed gathers the used-subcarrier columns of a (n_symbols, n_fft)
// grid back into (n_symbols, n_used).
func ExtractUsed(grid [][]complex128, p Params) ([][]complex128, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkShape(grid, p.NSymbols, p.NFFT, "grid"); err != nil {
		return nil, err
	}
	idx, err := UsedSubcarrierIndices(p.NFFT, p.NUsed)
	if err != nil {
		return nil, err
	}

	used := make([][]complex128, p.NSymbols)
	for s, row := range grid {
		used[s] = make([]complex128, p.NUsed)
		for i, k := range idx {
			used[s][i] = row[k]
		}
	}
	return used, nil
}

// IFFTTime converts each frequency-domain row to time domain.
func IFFTTime(grid [][]complex128) ([][]complex128, error) {
	_, cols, err := dsp.BlockShape(grid)
	if err != nil {
		return nil, err
	}
	plan := dsp.NewPlan(cols)
	out := make([][]complex128, len(grid))
	for s, row := range grid {
		out[s] = plan.Inverse(row)
	}
	return out, nil
}

// FFTFreq converts each time-domain row back to frequency domain.
func FFTFreq(timeSymbols [][]complex128) ([][]complex128, error) {
	_, cols, err := dsp.BlockShape(timeSymbols)
	if err != nil {
		return nil, err
	}
	plan := dsp.NewPlan(cols)
	out := make([][]complex128, len(timeSymbols))
	for s, row := range timeSymbols {
		out[s] = plan.Forward(row)
	}
	return out, nil
}

// AddCyclicPrefix prepends the last cpLen samples of every symbol to its
// front. A cpLen of zero yields an unmodified copy.
func AddCyclicPrefix(timeSymbols [][]complex128, cpLen int) ([][]complex128, error) {
	_, n, err := dsp.BlockShape(timeSymbols)
	if err != nil {
		return nil, err
	}
	if cpLen < 0 || cpLen >= n {
		return nil, fmt.Errorf("%w: cp_len must be in [0, n_fft)", dsp.ErrInvalidArgument)
	}

	out := make([][]complex128, len(timeSymbols))
	for s, row := range timeSymbols {
		// Copy last cpLen samples to the beginning
		withCP := make([]complex128, cpLen+n)
		copy(withCP, row[n-cpLen:])
		copy(withCP[cpLen:], row)
		out[s] = withCP
	}
	return out, nil
}

// RemoveCyclicPrefix drops the first cpLen samples of every symbol.
func RemoveCyclicPrefix(withCP [][]complex128, cpLen int) ([][]complex128, error) {
	_, n, err := dsp.BlockShape(withCP)
	if err != nil {
		return nil, err
	}
	if cpLen < 0 || cpLen >= n {
		return nil, fmt.Errorf("%w: cp_len must be in [0, symbol length)", dsp.ErrInvalidArgument)
	}

	out := make([][]complex128, len(withCP))
	for s, row := range withCP {
		out[s] = dsp.Clone(row[cpLen:])
	}
	return out, nil
}

// Serialize flattens a 2-D symbol block into a row-major sample stream.
func Serialize(block [][]complex128) []complex128 {
	total := 0
	for _, row := range block {
		total += len(row)
	}
	samples := make([]complex128, 0, total)
	for _, row := range block {
		samples = append(samples, row...)
	}
	return samples
}

// Deserialize reshapes a sample stream into rows of cols samples. The stream
// length must be exactly rows*cols.
func Deserialize(samples []complex128, rows, cols int) ([][]complex128, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: rows and cols must be positive", dsp.ErrInvalidArgument)
	}
	if len(samples) != rows*cols {
		return nil, fmt.Errorf("%w: sample length %d does not match %d x %d", dsp.ErrInvalidArgument, len(samples), rows, cols)
	}

	block := make([][]complex128, rows)
	for r := range block {
		block[r] = dsp.Clone(samples[r*cols : (r+1)*cols])
	}
	return block, nil
}

// DeserializeFrame reshapes a serialized frame into (n_symbols, n_fft+cp_len).
func DeserializeFrame(samples []complex128, p Params) ([][]complex128, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return Deserialize(samples, p.NSymbols, p.SymbolLen())
}

// Transmit runs the waveform chain from QPSK symbols to a cyclic-prefixed
// symbol block: grid mapping, IFFT and CP insertion.
func Transmit(symbols [][]complex128, p Params) ([][]complex128, error) {
	grid, err := MapToGrid(symbols, p)
	if err != nil {
		return nil, fmt.Errorf("map to grid: %w", err)
	}
	timeSymbols, err := IFFTTime(grid)
	if err != nil {
		return nil, fmt.Errorf("ifft: %w", err)
	}
	return AddCyclicPrefix(timeSymbols, p.CPLen)
}

// Receive inverts Transmit on a serialized stream: reshape, CP removal, FFT
// and used-subcarrier extraction.
func Receive(samples []complex128, p Params) ([][]complex128, error) {
	withCP, err := DeserializeFrame(samples, p)
	if err != nil {
		return nil, fmt.Errorf("deserialize: %w", err)
	}
	noCP, err := RemoveCyclicPrefix(withCP, p.CPLen)
	if err != nil {
		return nil, fmt.Errorf("remove cp: %w", err)
	}
	grid, err := FFTFreq(noCP)
	if err != nil {
		return nil, fmt.Errorf("fft: %w", err)
	}
	return ExtractUsed(grid, p)
}

func checkShape(block [][]complex128, rows, cols int, name string) error {
	if len(block) != rows {
		return fmt.Errorf("%w: %s has %d rows, want %d", dsp.ErrInvalidArgument, name, len(block), rows)
	}
	for i, row := range block {
		if len(row) != cols {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d", dsp.ErrInvalidArgument, name, i, len(row), cols)
		}
	}
	return nil
}
