// Command ntnls runs OFDM link simulations over impaired LEO satellite
// channels and writes BER artifacts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jeongseonghan/ntn-linksim/internal/logging"
	"github.com/jeongseonghan/ntn-linksim/internal/observability"
	"github.com/jeongseonghan/ntn-linksim/internal/sim"
)

// app holds process-wide state shared by every subcommand.
type app struct {
	log         logging.Logger
	parallel    int
	metricsFile string

	registry        *prometheus.Registry
	metrics         *observability.SimCollector
	shutdownTracing func(context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{log: logging.NewFromEnv()}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		a.log.Error(ctx, "Command failed", logging.Err(err))
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ntnls",
		Short: "OFDM link-level simulator for LEO non-terrestrial channels",
		Long: `ntnls pushes random QPSK/OFDM frames through a simulated LEO satellite
channel (AWGN, carrier frequency offset, propagation delay, Rician fading),
runs the receiver's CP-based synchronization, and reports bit error rate.

Results are written as JSON records plus BER plots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().IntVar(&a.parallel, "parallel", 0, "max concurrent simulation runs (0 = number of CPUs)")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newSimulateCmd(a),
		newCFOSweepCmd(a),
		newDelaySweepCmd(a),
		newRicianSweepCmd(a),
		newLEOPassCmd(a),
		newRunScenarioCmd(a),
		newReproduceCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	if a.log == nil {
		a.log = logging.Noop()
	}
	a.registry = prometheus.NewRegistry()
	metrics, err := observability.NewSimCollector(a.registry)
	if err != nil {
		return err
	}
	a.metrics = metrics

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), a.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracing = shutdown
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	observability.FlushTracing(context.WithoutCancel(ctx), a.shutdownTracing, a.log)
	if a.metricsFile == "" || a.metrics == nil {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
		return err
	}
	a.log.Info(ctx, "Wrote metrics", logging.String("path", a.metricsFile))
	return nil
}

func (a *app) runner(opts ...sim.Option) *sim.Runner {
	base := []sim.Option{
		sim.WithLogger(a.log),
		sim.WithTracer(observability.Tracer()),
		sim.WithParallelism(a.parallel),
	}
	if a.metrics != nil {
		base = append(base, sim.WithRecorder(a.metrics))
	}
	return sim.NewRunner(append(base, opts...)...)
}
