// Package scenario loads YAML experiment descriptions and runs them into
// artifact directories.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeongseonghan/ntn-linksim/internal/artifact"
	"github.com/jeongseonghan/ntn-linksim/internal/logging"
	"github.com/jeongseonghan/ntn-linksim/internal/sim"
)

var (
	ErrMissingSweep     = errors.New("scenario missing 'sweep' section")
	ErrMissingSweepType = errors.New("scenario missing 'sweep.type'")
	ErrUnknownSweepType = errors.New("unknown sweep type")
	ErrEmptySweep       = errors.New("sweep has no values")
	ErrNoScenarios      = errors.New("no .yaml scenario files found")
)

// Sweep types accepted in sweep.type.
var validSweepTypes = []string{sim.KindCFO, sim.KindDelay, sim.KindRicianK, sim.KindSNR}

// Sweep is the sweep section of a scenario file. Only the list matching Type
// is used.
type Sweep struct {
	Type         string    `yaml:"type"`
	SNRDB        []float64 `yaml:"snr_db"`
	CFOHz        []float64 `yaml:"cfo_hz"`
	DelaySamples []float64 `yaml:"delay_samples"`
	KDB          []float64 `yaml:"k_db"`
	EnableComp   bool      `yaml:"enable_comp"`
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Overrides   yaml.Node `yaml:"config"`
	Sweep       *Sweep    `yaml:"sweep"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// Options controls how scenarios are executed. Zero value is usable.
type Options struct {
	Runner *sim.Runner
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.Runner == nil {
		o.Runner = sim.NewRunner()
	}
	if o.Logger == nil {
		o.Logger = logging.Noop()
	}
	return o
}

// Load parses and validates the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	sc.Path = path
	return sc, nil
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if sc.Sweep == nil {
		return nil, ErrMissingSweep
	}
	if sc.Sweep.Type == "" {
		return nil, ErrMissingSweepType
	}
	if !isValidSweepType(sc.Sweep.Type) {
		return nil, fmt.Errorf("%w %q, valid: %s", ErrUnknownSweepType, sc.Sweep.Type, strings.Join(validSweepTypes, ", "))
	}
	return &sc, nil
}

func isValidSweepType(t string) bool {
	for _, v := range validSweepTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Config returns the default simulation config overlaid with the scenario's
// config section. Unrecognized keys are ignored.
func (s *Scenario) Config() (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if s.Overrides.Kind == 0 || s.Overrides.Tag == "!!null" {
		return cfg, nil
	}
	if err := s.Overrides.Decode(&cfg); err != nil {
		return sim.Config{}, fmt.Errorf("invalid config section: %w", err)
	}
	return cfg, nil
}

// Values returns the list being swept for the scenario's sweep type.
func (s *Sweep) Values() []float64 {
	switch s.Type {
	case sim.KindSNR:
		return s.SNRDB
	case sim.KindCFO:
		return s.CFOHz
	case sim.KindDelay:
		return s.DelaySamples
	case sim.KindRicianK:
		return s.KDB
	}
	return nil
}

// Run executes the scenario's sweep and writes its artifacts to outDir.
func Run(ctx context.Context, sc *Scenario, outDir string, opts Options) error {
	opts = opts.withDefaults()
	cfg, err := sc.Config()
	if err != nil {
		return err
	}
	values := sc.Sweep.Values()
	if len(values) == 0 {
		return fmt.Errorf("%w: sweep.%s", ErrEmptySweep, sc.Sweep.Type)
	}

	log := opts.Logger.With(logging.String("scenario", sc.Name), logging.String("sweep", sc.Sweep.Type))
	log.Info(ctx, "Running scenario", logging.Int("points", len(values)), logging.String("out", outDir))

	r := opts.Runner
	switch sc.Sweep.Type {
	case sim.KindSNR:
		ber, err := r.SweepSNR(ctx, cfg, values)
		if err != nil {
			return err
		}
		if err := artifact.SaveSweep(outDir, values, ber); err != nil {
			return err
		}

	case sim.KindCFO:
		noComp, withComp, err := compSweep(ctx, sc.Sweep.EnableComp, func(ctx context.Context, comp bool) ([]float64, error) {
			return r.SweepCFO(ctx, cfg, values, comp)
		})
		if err != nil {
			return err
		}
		if err := artifact.SaveCFOSweep(outDir, values, noComp, withComp, cfg.SNRDB); err != nil {
			return err
		}

	case sim.KindDelay:
		noComp, withComp, err := compSweep(ctx, sc.Sweep.EnableComp, func(ctx context.Context, comp bool) ([]float64, error) {
			return r.SweepDelay(ctx, cfg, values, comp)
		})
		if err != nil {
			return err
		}
		if err := artifact.SaveDelaySweep(outDir, values, noComp, withComp, cfg.SNRDB); err != nil {
			return err
		}

	case sim.KindRicianK:
		ber, err := r.SweepRicianK(ctx, cfg, values)
		if err != nil {
			return err
		}
		if err := artifact.SaveRicianSweep(outDir, values, ber, cfg.SNRDB); err != nil {
			return err
		}
	}

	log.Info(ctx, "Scenario complete")
	return nil
}

func compSweep(ctx context.Context, enableComp bool, sweep func(context.Context, bool) ([]float64, error)) ([]float64, []float64, error) {
	noComp, err := sweep(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	if !enableComp {
		return noComp, nil, nil
	}
	withComp, err := sweep(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	return noComp, withComp, nil
}

// ReproduceAll runs every *.yaml scenario in dir, in name order, writing each
// into outDir/<file stem>.
func ReproduceAll(ctx context.Context, dir, outDir string, opts Options) error {
	opts = opts.withDefaults()
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w in %s", ErrNoScenarios, dir)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		sc, err := Load(path)
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := Run(ctx, sc, filepath.Join(outDir, stem), opts); err != nil {
			return fmt.Errorf("scenario %s: %w", stem, err)
		}
	}
	opts.Logger.Info(ctx, "Reproduced scenarios", logging.Int("count", len(paths)), logging.String("out", outDir))
	return nil
}
