package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeongseonghan/ntn-linksim/internal/artifact"
	"github.com/jeongseonghan/ntn-linksim/internal/channel"
	"github.com/jeongseonghan/ntn-linksim/internal/logging"
	"github.com/jeongseonghan/ntn-linksim/internal/sim"
)

func newLEOPassCmd(a *app) *cobra.Command {
	var (
		tleFile   string
		tle1      string
		tle2      string
		station   channel.GroundStation
		carrierHz float64
		startStr  string
		duration  time.Duration
		step      time.Duration
		snrDB     float64
		seed      int64
		out       string
		noComp    bool
	)
	cmd := &cobra.Command{
		Use:   "leo-pass",
		Short: "Simulate BER over a satellite pass using SGP4-predicted Doppler",
		Long: `Propagate a TLE with SGP4, compute the slant range, elevation and Doppler
seen by a ground station at each time step, and run one simulation per
visible step with the Doppler injected as carrier frequency offset.

The TLE comes from --tle-file (two lines, optionally preceded by a name line)
or from --tle1/--tle2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if tleFile != "" {
				var err error
				if tle1, tle2, err = readTLE(tleFile); err != nil {
					return err
				}
			}
			if tle1 == "" || tle2 == "" {
				return fmt.Errorf("a TLE is required: use --tle-file or --tle1/--tle2")
			}

			start := time.Now().UTC()
			if startStr != "" {
				t, err := time.Parse(time.RFC3339, startStr)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				start = t.UTC()
			}
			if step <= 0 {
				return fmt.Errorf("--step must be positive")
			}
			count := int(duration/step) + 1

			link, err := channel.NewLEOLink(tle1, tle2, station, carrierHz)
			if err != nil {
				return err
			}

			cfg := sim.DefaultConfig().WithSeed(seed).WithSNR(snrDB).WithCFOCompensation(!noComp)
			points, err := a.runner().SweepLEOPass(ctx, cfg, link, start, step, count)
			if err != nil {
				return err
			}
			if err := artifact.SaveLEOPass(out, station, carrierHz, points); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			visible := 0
			fmt.Fprintf(w, "%20s  %9s  %10s  %11s  %10s\n", "Time (UTC)", "Elev deg", "Range km", "Doppler Hz", "BER")
			for _, p := range points {
				ber := "-"
				if p.Visible {
					visible++
					ber = fmt.Sprintf("%.4g", p.BER)
				}
				fmt.Fprintf(w, "%20s  %9.2f  %10.1f  %11.1f  %10s\n",
					p.Time.Format(time.RFC3339), p.ElevationDeg, p.RangeKm, p.DopplerHz, ber)
			}
			a.log.Info(ctx, "Saved LEO pass",
				logging.String("dir", out),
				logging.Int("steps", len(points)),
				logging.Int("visible", visible),
			)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&tleFile, "tle-file", "", "file holding the satellite TLE")
	f.StringVar(&tle1, "tle1", "", "TLE line 1")
	f.StringVar(&tle2, "tle2", "", "TLE line 2")
	f.Float64Var(&station.LatDeg, "lat", 0, "ground station geodetic latitude in degrees")
	f.Float64Var(&station.LonDeg, "lon", 0, "ground station longitude in degrees")
	f.Float64Var(&station.AltM, "alt-m", 0, "ground station altitude in meters")
	f.Float64Var(&station.MinElevationDeg, "min-elev", 10, "elevation mask in degrees")
	f.Float64Var(&carrierHz, "carrier-hz", 2e9, "carrier frequency in Hz")
	f.StringVar(&startStr, "start", "", "pass start time, RFC3339 (default now)")
	f.DurationVar(&duration, "duration", 10*time.Minute, "time span to simulate")
	f.DurationVar(&step, "step", 10*time.Second, "time between simulated points")
	f.Float64Var(&snrDB, "snr-db", 20, "fixed SNR in dB")
	f.Int64Var(&seed, "seed", 1, "RNG seed")
	f.StringVar(&out, "out", defaultOutDir, "output directory for artifacts")
	f.BoolVar(&noComp, "no-comp", false, "disable CFO compensation")
	return cmd
}

// readTLE returns the two element lines of a TLE file, skipping an optional
// name line and blank lines.
func readTLE(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to open TLE: %w", err)
	}
	defer f.Close()

	var l1, l2 string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \r")
		switch {
		case strings.HasPrefix(line, "1 ") && l1 == "":
			l1 = line
		case strings.HasPrefix(line, "2 ") && l2 == "":
			l2 = line
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", fmt.Errorf("failed to read TLE: %w", err)
	}
	if l1 == "" || l2 == "" {
		return "", "", fmt.Errorf("%s: TLE lines 1 and 2 not found", path)
	}
	return l1, l2, nil
}
