package sim

import (
	"fmt"
	"math"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
	"github.com/jeongseonghan/ntn-linksim/internal/modem"
)

// Config is the full description of one simulation run. It is a value type:
// the With* methods return modified copies and never touch the receiver.
type Config struct {
	modem.Params `yaml:",inline"`

	SNRDB            float64 `json:"snr_db" yaml:"snr_db"`
	Seed             int64   `json:"seed" yaml:"seed"`
	FsHz             float64 `json:"fs_hz" yaml:"fs_hz"`
	CFOHz            float64 `json:"cfo_hz" yaml:"cfo_hz"`
	EnableCFOComp    bool    `json:"enable_cfo_comp" yaml:"enable_cfo_comp"`
	DelaySamples     float64 `json:"delay_samples" yaml:"delay_samples"`
	EnableTimingComp bool    `json:"enable_timing_comp" yaml:"enable_timing_comp"`
	EnableRician     bool    `json:"enable_rician" yaml:"enable_rician"`
	RicianKDB        float64 `json:"rician_k_db" yaml:"rician_k_db"`
}

// DefaultConfig returns a 64-point, 52-subcarrier OFDM frame of 200 symbols
// at 15.36 MHz, 10 dB SNR, with every impairment and compensation off.
func DefaultConfig() Config {
	return Config{
		Params: modem.Params{
			NFFT:     64,
			NUsed:    52,
			CPLen:    16,
			NSymbols: 200,
		},
		SNRDB:     10,
		Seed:      1,
		FsHz:      15.36e6,
		RicianKDB: 10,
	}
}

// Validate checks the OFDM numerology and the channel parameters.
func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.FsHz <= 0 {
		return fmt.Errorf("%w: fs_hz must be positive", dsp.ErrInvalidArgument)
	}
	if c.DelaySamples < 0 || math.IsNaN(c.DelaySamples) || math.IsInf(c.DelaySamples, 0) {
		return fmt.Errorf("%w: delay_samples must be finite and non-negative", dsp.ErrInvalidArgument)
	}
	return nil
}

// SubcarrierSpacing returns fs/n_fft in Hz. The CP-based CFO estimator is
// unambiguous below half of it.
func (c Config) SubcarrierSpacing() float64 {
	return c.FsHz / float64(c.NFFT)
}

func (c Config) WithSNR(snrDB float64) Config {
	c.SNRDB = snrDB
	return c
}

func (c Config) WithCFO(cfoHz float64) Config {
	c.CFOHz = cfoHz
	return c
}

func (c Config) WithDelay(delaySamples float64) Config {
	c.DelaySamples = delaySamples
	return c
}

// WithRicianK sets the K-factor without enabling fading.
func (c Config) WithRicianK(kDB float64) Config {
	c.RicianKDB = kDB
	return c
}

func (c Config) WithRician(enabled bool) Config {
	c.EnableRician = enabled
	return c
}

func (c Config) WithSeed(seed int64) Config {
	c.Seed = seed
	return c
}

func (c Config) WithCFOCompensation(enabled bool) Config {
	c.EnableCFOComp = enabled
	return c
}

func (c Config) WithTimingCompensation(enabled bool) Config {
	c.EnableTimingComp = enabled
	return c
}

func (c Config) WithSymbols(n int) Config {
	c.NSymbols = n
	return c
}

// Result is the outcome of one run.
type Result struct {
	BER   float64 `json:"ber" yaml:"ber"`
	NBits int     `json:"n_bits" yaml:"n_bits"`
	SNRDB float64 `json:"snr_db" yaml:"snr_db"`
}
