package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for simulation runs and sweeps.
// It satisfies sim.Recorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Runs          *prometheus.CounterVec
	RunDurations  *prometheus.HistogramVec
	BitsSimulated *prometheus.CounterVec
	LastBER       *prometheus.GaugeVec
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ntnls_runs_total",
		Help: "Total number of simulation runs, labeled by sweep kind and outcome.",
	}, []string{"sweep", "outcome"}), "ntnls_runs_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ntnls_run_duration_seconds",
		Help:    "Wall time of one simulation run in seconds.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"sweep"}), "ntnls_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	bits, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ntnls_bits_simulated_total",
		Help: "Payload bits pushed through the link, labeled by sweep kind.",
	}, []string{"sweep"}), "ntnls_bits_simulated_total")
	if err != nil {
		return nil, err
	}

	lastBER, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ntnls_last_ber",
		Help: "Bit error rate of the most recently completed run, labeled by sweep kind.",
	}, []string{"sweep"}), "ntnls_last_ber")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:      gatherer,
		Runs:          runs,
		RunDurations:  durations,
		BitsSimulated: bits,
		LastBER:       lastBER,
	}, nil
}

// ObserveRun records one finished run.
func (c *SimCollector) ObserveRun(sweep string, elapsed time.Duration, nBits int, ber float64, err error) {
	if c == nil {
		return
	}
	if sweep == "" {
		sweep = "single"
	}
	if err != nil {
		c.Runs.WithLabelValues(sweep, "error").Inc()
		return
	}
	c.Runs.WithLabelValues(sweep, "ok").Inc()
	c.RunDurations.WithLabelValues(sweep).Observe(elapsed.Seconds())
	c.BitsSimulated.WithLabelValues(sweep).Add(float64(nBits))
	c.LastBER.WithLabelValues(sweep).Set(ber)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the current metric values in the text exposition
// format, for node_exporter's textfile collector or offline inspection.
func (c *SimCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
