package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeongseonghan/ntn-linksim/internal/artifact"
	"github.com/jeongseonghan/ntn-linksim/internal/logging"
	"github.com/jeongseonghan/ntn-linksim/internal/sim"
)

const defaultOutDir = "results"

func newSimulateCmd(a *app) *cobra.Command {
	var (
		snrDB []float64
		seed  int64
		out   string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an AWGN simulation at one or more SNR points",
		Long: `Run an AWGN simulation. A single --snr-db value writes run.json with the
full configuration and result; several values write an SNR sweep.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := sim.DefaultConfig().WithSeed(seed)

			if len(snrDB) == 1 {
				cfg = cfg.WithSNR(snrDB[0])
				res, err := a.runner().Run(ctx, cfg)
				if err != nil {
					return err
				}
				path, err := artifact.SaveRun(out, cfg, res)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "SNR %6.2f dB  BER %.6g  (%d bits)\n", res.SNRDB, res.BER, res.NBits)
				a.log.Info(ctx, "Saved run", logging.String("path", path))
				return nil
			}

			ber, err := a.runner().SweepSNR(ctx, cfg, snrDB)
			if err != nil {
				return err
			}
			if err := artifact.SaveSweep(out, snrDB, ber); err != nil {
				return err
			}
			printCurve(cmd, "SNR (dB)", snrDB, ber, nil)
			a.log.Info(ctx, "Saved SNR sweep", logging.String("dir", out))
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&snrDB, "snr-db", nil, "SNR points in dB (one or more)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed")
	cmd.Flags().StringVar(&out, "out", defaultOutDir, "output directory for artifacts")
	cmd.MarkFlagRequired("snr-db")
	return cmd
}

func newCFOSweepCmd(a *app) *cobra.Command {
	var (
		cfoHz  []float64
		snrDB  float64
		seed   int64
		out    string
		noComp bool
	)
	cmd := &cobra.Command{
		Use:   "cfo-sweep",
		Short: "Sweep carrier frequency offset at a fixed SNR",
		Long: `Sweep CFO at a fixed SNR and plot BER with and without CP-based CFO
compensation. The estimator is unambiguous for |CFO| below half the
subcarrier spacing (120 kHz with the default numerology).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := sim.DefaultConfig().WithSeed(seed).WithSNR(snrDB)
			r := a.runner()

			berNoComp, err := r.SweepCFO(ctx, cfg, cfoHz, false)
			if err != nil {
				return err
			}
			var berComp []float64
			if !noComp {
				if berComp, err = r.SweepCFO(ctx, cfg, cfoHz, true); err != nil {
					return err
				}
			}
			if err := artifact.SaveCFOSweep(out, cfoHz, berNoComp, berComp, snrDB); err != nil {
				return err
			}
			printCurve(cmd, "CFO (Hz)", cfoHz, berNoComp, berComp)
			a.log.Info(ctx, "Saved CFO sweep", logging.String("dir", out))
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&cfoHz, "cfo-hz", nil, "CFO points in Hz (one or more)")
	cmd.Flags().Float64Var(&snrDB, "snr-db", 20, "fixed SNR in dB")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed")
	cmd.Flags().StringVar(&out, "out", defaultOutDir, "output directory for artifacts")
	cmd.Flags().BoolVar(&noComp, "no-comp", false, "skip the compensated curve")
	cmd.MarkFlagRequired("cfo-hz")
	return cmd
}

func newDelaySweepCmd(a *app) *cobra.Command {
	var (
		delays []float64
		snrDB  float64
		seed   int64
		out    string
		noComp bool
	)
	cmd := &cobra.Command{
		Use:   "delay-sweep",
		Short: "Sweep propagation delay at a fixed SNR",
		Long: `Sweep timing offset in samples at a fixed SNR and plot BER with and
without CP-based timing compensation. Delays must be non-negative.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := sim.DefaultConfig().WithSeed(seed).WithSNR(snrDB)
			r := a.runner()

			berNoComp, err := r.SweepDelay(ctx, cfg, delays, false)
			if err != nil {
				return err
			}
			var berComp []float64
			if !noComp {
				if berComp, err = r.SweepDelay(ctx, cfg, delays, true); err != nil {
					return err
				}
			}
			if err := artifact.SaveDelaySweep(out, delays, berNoComp, berComp, snrDB); err != nil {
				return err
			}
			printCurve(cmd, "Delay", delays, berNoComp, berComp)
			a.log.Info(ctx, "Saved delay sweep", logging.String("dir", out))
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&delays, "delay-samples", nil, "delay points in samples (one or more, >= 0)")
	cmd.Flags().Float64Var(&snrDB, "snr-db", 20, "fixed SNR in dB")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed")
	cmd.Flags().StringVar(&out, "out", defaultOutDir, "output directory for artifacts")
	cmd.Flags().BoolVar(&noComp, "no-comp", false, "skip the compensated curve")
	cmd.MarkFlagRequired("delay-samples")
	return cmd
}

func newRicianSweepCmd(a *app) *cobra.Command {
	var (
		kDB   []float64
		snrDB float64
		seed  int64
		out   string
	)
	cmd := &cobra.Command{
		Use:   "rician-sweep",
		Short: "Sweep Rician K-factor at a fixed SNR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := sim.DefaultConfig().WithSeed(seed).WithSNR(snrDB)

			ber, err := a.runner().SweepRicianK(ctx, cfg, kDB)
			if err != nil {
				return err
			}
			if err := artifact.SaveRicianSweep(out, kDB, ber, snrDB); err != nil {
				return err
			}
			printCurve(cmd, "K (dB)", kDB, ber, nil)
			a.log.Info(ctx, "Saved Rician sweep", logging.String("dir", out))
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&kDB, "k-db", nil, "Rician K-factor values in dB (one or more)")
	cmd.Flags().Float64Var(&snrDB, "snr-db", 15, "fixed SNR in dB")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed")
	cmd.Flags().StringVar(&out, "out", defaultOutDir, "output directory for artifacts")
	cmd.MarkFlagRequired("k-db")
	return cmd
}

// printCurve writes a small table of the sweep to stdout. comp may be nil.
func printCurve(cmd *cobra.Command, xLabel string, xs, ber, comp []float64) {
	w := cmd.OutOrStdout()
	if comp == nil {
		fmt.Fprintf(w, "%12s  %12s\n", xLabel, "BER")
		for i, x := range xs {
			fmt.Fprintf(w, "%12.6g  %12.6g\n", x, ber[i])
		}
		return
	}
	fmt.Fprintf(w, "%12s  %12s  %12s\n", xLabel, "BER no comp", "BER comp")
	for i, x := range xs {
		fmt.Fprintf(w, "%12.6g  %12.6g  %12.6g\n", x, ber[i], comp[i])
	}
}
