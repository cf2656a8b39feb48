package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jeongseonghan/ntn-linksim/internal/artifact"
	"github.com/jeongseonghan/ntn-linksim/internal/sim"
)

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
}

func TestLoadSNRScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "awgn.yaml", `
name: AWGN
config:
  seed: 3
sweep:
  type: snr
  snr_db: [0, 5, 10]
`)
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.Name != "AWGN" || sc.Sweep.Type != sim.KindSNR {
		t.Fatalf("unexpected scenario: %+v", sc)
	}
	if got := sc.Sweep.Values(); len(got) != 3 || got[2] != 10 {
		t.Fatalf("values = %v", got)
	}
	if sc.Path != path {
		t.Fatalf("path = %s", sc.Path)
	}
}

func TestScenarioConfigOverlay(t *testing.T) {
	sc, err := Parse([]byte(`
name: Rician test
config:
  seed: 42
  snr_db: 15.0
  enable_rician: true
  rician_k_db: 5.0
  n_symbols: 50
  not_a_field: ignored
sweep:
  type: rician_k
  k_db: [0, 10]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := sc.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}

	def := sim.DefaultConfig()
	if cfg.Seed != 42 || cfg.SNRDB != 15 || !cfg.EnableRician || cfg.RicianKDB != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.NSymbols != 50 {
		t.Fatalf("n_symbols = %d, want 50", cfg.NSymbols)
	}
	if cfg.NFFT != def.NFFT || cfg.FsHz != def.FsHz || cfg.CPLen != def.CPLen {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestScenarioConfigDefaultsWhenAbsent(t *testing.T) {
	for _, body := range []string{
		"sweep:\n  type: snr\n  snr_db: [1]\n",
		"config:\nsweep:\n  type: snr\n  snr_db: [1]\n",
		"config: {}\nsweep:\n  type: snr\n  snr_db: [1]\n",
	} {
		sc, err := Parse([]byte(body))
		if err != nil {
			t.Fatalf("Parse(%q): %v", body, err)
		}
		cfg, err := sc.Config()
		if err != nil {
			t.Fatalf("Config(%q): %v", body, err)
		}
		if cfg != sim.DefaultConfig() {
			t.Fatalf("Config(%q) = %+v, want defaults", body, cfg)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"missing sweep", "name: bad\nconfig: {}\n", ErrMissingSweep},
		{"empty document", "", ErrMissingSweep},
		{"missing sweep type", "name: bad\nsweep:\n  snr_db: [0, 5]\n", ErrMissingSweepType},
		{"unknown sweep type", "name: bad\nsweep:\n  type: foobar\n", ErrUnknownSweepType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("sweep: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunSNRScenario(t *testing.T) {
	sc, err := Parse([]byte(`
name: mini
config:
  n_symbols: 20
sweep:
  type: snr
  snr_db: [0, 10]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := filepath.Join(t.TempDir(), "out")
	if err := Run(context.Background(), sc, out, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertExists(t, filepath.Join(out, artifact.SweepFile))
	assertExists(t, filepath.Join(out, artifact.SweepPlot))
}

func TestRunCompensatedSweeps(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		files []string
	}{
		{
			"cfo",
			"config:\n  n_symbols: 10\n  snr_db: 20\nsweep:\n  type: cfo\n  cfo_hz: [0, 1000]\n  enable_comp: true\n",
			[]string{artifact.CFOSweepFile, artifact.CFOSweepPlot},
		},
		{
			"delay",
			"config:\n  n_symbols: 10\n  snr_db: 20\nsweep:\n  type: delay\n  delay_samples: [0, 4]\n",
			[]string{artifact.DelaySweepFile, artifact.DelaySweepPlot},
		},
		{
			"rician",
			"config:\n  n_symbols: 10\nsweep:\n  type: rician_k\n  k_db: [0, 10]\n",
			[]string{artifact.RicianSweepFile, artifact.RicianSweepPlot},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Parse([]byte(tt.body))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			out := t.TempDir()
			if err := Run(context.Background(), sc, out, Options{}); err != nil {
				t.Fatalf("Run: %v", err)
			}
			for _, f := range tt.files {
				assertExists(t, filepath.Join(out, f))
			}
		})
	}
}

func TestRunEmptySweep(t *testing.T) {
	sc, err := Parse([]byte("sweep:\n  type: cfo\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Run(context.Background(), sc, t.TempDir(), Options{}); !errors.Is(err, ErrEmptySweep) {
		t.Fatalf("Run error = %v, want ErrEmptySweep", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	sc, err := Parse([]byte("config:\n  n_used: 63\nsweep:\n  type: snr\n  snr_db: [0]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Run(context.Background(), sc, t.TempDir(), Options{}); err == nil {
		t.Fatal("expected validation error for odd n_used")
	}
}

func TestReproduceAll(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b_delay.yaml", "config:\n  n_symbols: 10\nsweep:\n  type: delay\n  delay_samples: [0, 2]\n")
	writeScenario(t, dir, "a_snr.yaml", "config:\n  n_symbols: 10\nsweep:\n  type: snr\n  snr_db: [5]\n")
	writeScenario(t, dir, "notes.txt", "not a scenario")

	out := t.TempDir()
	if err := ReproduceAll(context.Background(), dir, out, Options{Runner: sim.NewRunner(sim.WithParallelism(2))}); err != nil {
		t.Fatalf("ReproduceAll: %v", err)
	}
	assertExists(t, filepath.Join(out, "a_snr", artifact.SweepFile))
	assertExists(t, filepath.Join(out, "b_delay", artifact.DelaySweepFile))
	if _, err := os.Stat(filepath.Join(out, "notes")); !os.IsNotExist(err) {
		t.Fatalf("non-yaml file was processed: %v", err)
	}
}

func TestReproduceAllEmptyDir(t *testing.T) {
	err := ReproduceAll(context.Background(), t.TempDir(), t.TempDir(), Options{})
	if !errors.Is(err, ErrNoScenarios) {
		t.Fatalf("ReproduceAll error = %v, want ErrNoScenarios", err)
	}
}

func TestReproduceAllStopsOnBadScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", "sweep:\n  type: nope\n")
	err := ReproduceAll(context.Background(), dir, t.TempDir(), Options{})
	if !errors.Is(err, ErrUnknownSweepType) {
		t.Fatalf("ReproduceAll error = %v, want ErrUnknownSweepType", err)
	}
}
