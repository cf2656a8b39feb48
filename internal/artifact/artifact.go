// Package artifact persists simulation results as JSON records and BER plots.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/jeongseonghan/ntn-linksim/internal/channel"
	"github.com/jeongseonghan/ntn-linksim/internal/sim"
)

// File names written by the Save* functions.
const (
	RunFile         = "run.json"
	SweepFile       = "sweep.json"
	SweepPlot       = "ber_vs_snr.png"
	CFOSweepFile    = "sweep_cfo.json"
	CFOSweepPlot    = "ber_vs_cfo.png"
	DelaySweepFile  = "sweep_delay.json"
	DelaySweepPlot  = "ber_vs_delay.png"
	RicianSweepFile = "sweep_rician.json"
	RicianSweepPlot = "ber_vs_rician_k.png"
	LEOPassFile     = "leo_pass.json"
	LEOPassPlot     = "ber_vs_time.png"
	plotWidth       = 6 * vg.Inch
	plotHeight      = 4 * vg.Inch
	noCompLabel     = "no compensation"
	withCompLabel   = "with compensation"
	dirPerm         = 0o755
	filePerm        = 0o644
)

// SaveRun writes {config, result} for a single run to dir/run.json.
func SaveRun(dir string, cfg sim.Config, res sim.Result) (string, error) {
	return writeJSON(dir, RunFile, map[string]any{
		"config": cfg,
		"result": res,
	})
}

// SaveSweep writes an SNR sweep to sweep.json and plots BER against SNR.
func SaveSweep(dir string, snrDB, ber []float64) error {
	if err := checkLengths(len(snrDB), ber); err != nil {
		return err
	}
	if _, err := writeJSON(dir, SweepFile, map[string]any{
		"snr_db": snrDB,
		"ber":    ber,
	}); err != nil {
		return err
	}
	return writePlot(dir, SweepPlot, "BER vs SNR (AWGN)", "SNR (dB)", snrDB, []series{{"BER", ber}})
}

// SaveCFOSweep writes a CFO sweep. withComp may be nil when the compensated
// curve was not run.
func SaveCFOSweep(dir string, cfoHz, noComp, withComp []float64, snrDB float64) error {
	return saveCompSweep(dir, CFOSweepFile, CFOSweepPlot, "cfo_hz",
		fmt.Sprintf("BER vs CFO (SNR %g dB)", snrDB), "CFO (Hz)", cfoHz, noComp, withComp, snrDB)
}

// SaveDelaySweep writes a delay sweep. withComp may be nil when the
// compensated curve was not run.
func SaveDelaySweep(dir string, delaySamples, noComp, withComp []float64, snrDB float64) error {
	return saveCompSweep(dir, DelaySweepFile, DelaySweepPlot, "delay_samples",
		fmt.Sprintf("BER vs delay (SNR %g dB)", snrDB), "Delay (samples)", delaySamples, noComp, withComp, snrDB)
}

// SaveRicianSweep writes a Rician K-factor sweep.
func SaveRicianSweep(dir string, kDB, ber []float64, snrDB float64) error {
	if err := checkLengths(len(kDB), ber); err != nil {
		return err
	}
	if _, err := writeJSON(dir, RicianSweepFile, map[string]any{
		"k_db":   kDB,
		"ber":    ber,
		"snr_db": snrDB,
	}); err != nil {
		return err
	}
	title := fmt.Sprintf("BER vs Rician K (SNR %g dB)", snrDB)
	return writePlot(dir, RicianSweepPlot, title, "K-factor (dB)", kDB, []series{{"BER", ber}})
}

// SaveLEOPass writes a satellite pass and plots BER over the visible part
// of it.
func SaveLEOPass(dir string, gs channel.GroundStation, carrierHz float64, points []sim.PassPoint) error {
	if _, err := writeJSON(dir, LEOPassFile, map[string]any{
		"station":    gs,
		"carrier_hz": carrierHz,
		"points":     points,
	}); err != nil {
		return err
	}

	var xs, ys []float64
	for _, pt := range points {
		if pt.Visible {
			xs = append(xs, pt.OffsetS)
			ys = append(ys, pt.BER)
		}
	}
	title := fmt.Sprintf("BER over pass (carrier %g GHz)", carrierHz/1e9)
	return writePlot(dir, LEOPassPlot, title, "Time from start (s)", xs, []series{{"BER", ys}})
}

func saveCompSweep(dir, file, plotFile, key, title, xLabel string, xs, noComp, withComp []float64, snrDB float64) error {
	if err := checkLengths(len(xs), noComp); err != nil {
		return err
	}
	curves := []series{{noCompLabel, noComp}}
	var comp any
	if withComp != nil {
		if err := checkLengths(len(xs), withComp); err != nil {
			return err
		}
		curves = append(curves, series{withCompLabel, withComp})
		comp = withComp
	}

	if _, err := writeJSON(dir, file, map[string]any{
		key:             xs,
		"ber_no_comp":   noComp,
		"ber_with_comp": comp,
		"snr_db":        snrDB,
	}); err != nil {
		return err
	}
	return writePlot(dir, plotFile, title, xLabel, xs, curves)
}

func checkLengths(n int, ber []float64) error {
	if len(ber) != n {
		return fmt.Errorf("sweep has %d points but %d BER values", n, len(ber))
	}
	return nil
}

// writeJSON writes payload indented with object keys sorted.
func writeJSON(dir, name string, payload any) (string, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Round-trip through a generic value so struct fields come out sorted too.
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	data, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(data, '\n'), filePerm); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

type series struct {
	name string
	ys   []float64
}

func writePlot(dir, name, title, xLabel string, xs []float64, curves []series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "BER"
	p.Add(plotter.NewGrid())

	if len(xs) > 0 {
		var args []any
		for _, c := range curves {
			pts := make(plotter.XYs, len(xs))
			for i := range xs {
				pts[i].X = xs[i]
				pts[i].Y = c.ys[i]
			}
			args = append(args, c.name, pts)
		}
		if err := plotutil.AddLinePoints(p, args...); err != nil {
			return fmt.Errorf("failed to build %s: %w", name, err)
		}
	}

	if err := p.Save(plotWidth, plotHeight, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}
