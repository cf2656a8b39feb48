package sim

import (
	"fmt"
	"math/rand"

	"github.com/jeongseonghan/ntn-linksim/internal/channel"
	"github.com/jeongseonghan/ntn-linksim/internal/modem"
)

// RunOnce simulates one frame end to end and measures its bit error rate.
//
// A single generator seeded from cfg.Seed feeds, in this order, the payload
// bits, the Rician gains (when enabled) and the AWGN samples, so a given
// configuration always yields the same result.
func RunOnce(cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	p := cfg.Params

	bitsTx := make([]byte, p.NumBits())
	for i := range bitsTx {
		bitsTx[i] = byte(rng.Intn(2))
	}
	flat, err := modem.Modulate(bitsTx)
	if err != nil {
		return Result{}, fmt.Errorf("modulate: %w", err)
	}
	symbols, err := modem.Deserialize(flat, p.NSymbols, p.NUsed)
	if err != nil {
		return Result{}, err
	}

	txWithCP, err := modem.Transmit(symbols, p)
	if err != nil {
		return Result{}, err
	}
	if cfg.EnableRician {
		if txWithCP, err = channel.ApplyRicianFading(txWithCP, cfg.RicianKDB, rng); err != nil {
			return Result{}, fmt.Errorf("rician: %w", err)
		}
	}

	samples := modem.Serialize(txWithCP)
	if cfg.CFOHz != 0 {
		if samples, err = channel.ApplyCFO(samples, cfg.FsHz, cfg.CFOHz); err != nil {
			return Result{}, fmt.Errorf("cfo: %w", err)
		}
	}
	if cfg.DelaySamples != 0 {
		if samples, err = channel.ApplyDelay(samples, cfg.DelaySamples); err != nil {
			return Result{}, fmt.Errorf("delay: %w", err)
		}
	}

	rx, err := channel.AddAWGN(samples, cfg.SNRDB, rng)
	if err != nil {
		return Result{}, fmt.Errorf("awgn: %w", err)
	}

	// Symbol boundaries must be aligned before the CP is trusted for CFO.
	if cfg.EnableTimingComp {
		delay, err := modem.EstimateTimingOffsetCP(rx, p.NFFT, p.CPLen, p.NSymbols)
		if err != nil {
			return Result{}, fmt.Errorf("timing estimate: %w", err)
		}
		if rx, err = modem.CompensateIntegerDelay(rx, delay); err != nil {
			return Result{}, err
		}
	}
	if cfg.EnableCFOComp {
		cfo, err := modem.EstimateCFOFromCP(rx[:p.SymbolLen()], p.NFFT, p.CPLen, cfg.FsHz)
		if err != nil {
			return Result{}, fmt.Errorf("cfo estimate: %w", err)
		}
		if rx, err = modem.CompensateCFO(rx, cfg.FsHz, cfo); err != nil {
			return Result{}, err
		}
	}

	used, err := modem.Receive(rx, p)
	if err != nil {
		return Result{}, err
	}
	bitsRx := modem.DemodulateHard(modem.Serialize(used))

	errs := modem.CountBitErrors(bitsTx, bitsRx)
	return Result{
		BER:   float64(errs) / float64(len(bitsTx)),
		NBits: len(bitsTx),
		SNRDB: cfg.SNRDB,
	}, nil
}
