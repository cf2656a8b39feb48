package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.NFFT != 64 || cfg.NUsed != 52 || cfg.CPLen != 16 || cfg.NSymbols != 200 {
		t.Errorf("unexpected numerology: %+v", cfg.Params)
	}
	if cfg.SNRDB != 10 || cfg.Seed != 1 || cfg.FsHz != 15.36e6 {
		t.Errorf("unexpected link defaults: %+v", cfg)
	}
	if cfg.CFOHz != 0 || cfg.DelaySamples != 0 || cfg.EnableRician || cfg.RicianKDB != 10 {
		t.Errorf("impairments should be off by default: %+v", cfg)
	}
	if cfg.EnableCFOComp || cfg.EnableTimingComp {
		t.Errorf("compensation should be off by default: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if got := cfg.SubcarrierSpacing(); got != 240e3 {
		t.Errorf("subcarrier spacing = %g, want 240 kHz", got)
	}
}

func TestConfig_WithLeavesReceiverUntouched(t *testing.T) {
	base := DefaultConfig()
	derived := base.WithSNR(3).WithCFO(1200).WithDelay(4.5).WithRician(true).
		WithRicianK(7).WithSeed(9).WithCFOCompensation(true).
		WithTimingCompensation(true).WithSymbols(12)

	if base != DefaultConfig() {
		t.Fatalf("base config was mutated: %+v", base)
	}
	want := Config{
		Params:           base.Params,
		SNRDB:            3,
		Seed:             9,
		FsHz:             base.FsHz,
		CFOHz:            1200,
		EnableCFOComp:    true,
		DelaySamples:     4.5,
		EnableTimingComp: true,
		EnableRician:     true,
		RicianKDB:        7,
	}
	want.NSymbols = 12
	if derived != want {
		t.Errorf("derived = %+v\nwant      %+v", derived, want)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(Config) Config
	}{
		{"zero fs", func(c Config) Config { c.FsHz = 0; return c }},
		{"negative delay", func(c Config) Config { return c.WithDelay(-1) }},
		{"infinite delay", func(c Config) Config { return c.WithDelay(math.Inf(1)) }},
		{"NaN delay", func(c Config) Config { return c.WithDelay(math.NaN()) }},
		{"odd n_used", func(c Config) Config { c.NUsed = 51; return c }},
		{"cp too long", func(c Config) Config { c.CPLen = 64; return c }},
		{"no symbols", func(c Config) Config { return c.WithSymbols(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(DefaultConfig()).Validate()
			if !errors.Is(err, dsp.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
