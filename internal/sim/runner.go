package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeongseonghan/ntn-linksim/internal/logging"
)

// Sweep kinds, used as metric labels and in Point.Sweep.
const (
	KindSingle  = "single"
	KindSNR     = "snr"
	KindCFO     = "cfo"
	KindDelay   = "delay"
	KindRicianK = "rician_k"
	KindLEOPass = "leo_pass"
)

// Recorder receives one measurement per finished run.
type Recorder interface {
	ObserveRun(sweep string, elapsed time.Duration, nBits int, ber float64, err error)
}

// Point is one completed sweep point.
type Point struct {
	Sweep string  `json:"sweep"`
	Index int     `json:"index"`
	Value float64 `json:"value"`
	BER   float64 `json:"ber"`
}

// Runner executes runs and sweeps with logging, metrics and tracing
// attached. The zero value is not usable; use NewRunner.
type Runner struct {
	log         logging.Logger
	recorder    Recorder
	tracer      trace.Tracer
	parallelism int
	onPoint     func(Point)
	pointMu     sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for per-run debug lines.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithParallelism bounds how many sweep points run at once. Values below 1
// select runtime.NumCPU().
func WithParallelism(n int) Option {
	return func(r *Runner) { r.parallelism = n }
}

// WithOnPoint registers a callback invoked as each sweep point completes.
// Calls are serialized but arrive in completion order, not input order.
func WithOnPoint(fn func(Point)) Option {
	return func(r *Runner) { r.onPoint = fn }
}

// NewRunner builds a Runner. Without options it logs nothing, records no
// metrics and uses all CPUs.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		log:    logging.Noop(),
		tracer: otel.Tracer("github.com/jeongseonghan/ntn-linksim/internal/sim"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parallelism < 1 {
		r.parallelism = runtime.NumCPU()
	}
	return r
}

// Run executes a single simulation.
func (r *Runner) Run(ctx context.Context, cfg Config) (Result, error) {
	return r.run(ctx, KindSingle, cfg)
}

func (r *Runner) run(ctx context.Context, kind string, cfg Config) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "sim.run", trace.WithAttributes(
		attribute.String("sweep", kind),
		attribute.Float64("snr_db", cfg.SNRDB),
		attribute.Int64("seed", cfg.Seed),
		attribute.Float64("cfo_hz", cfg.CFOHz),
		attribute.Float64("delay_samples", cfg.DelaySamples),
		attribute.Bool("rician", cfg.EnableRician),
	))
	defer span.End()

	start := time.Now()
	res, err := RunOnce(cfg)
	elapsed := time.Since(start)
	if r.recorder != nil {
		r.recorder.ObserveRun(kind, elapsed, res.NBits, res.BER, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(attribute.Float64("ber", res.BER))
	r.log.Debug(ctx, "run complete",
		logging.String("sweep", kind),
		logging.Float64("snr_db", cfg.SNRDB),
		logging.Int64("seed", cfg.Seed),
		logging.Float64("ber", res.BER),
		logging.Int("n_bits", res.NBits),
		logging.String("elapsed", elapsed.String()),
	)
	return res, nil
}

// SweepSNR returns the BER at each SNR in snrDB, in input order.
func (r *Runner) SweepSNR(ctx context.Context, base Config, snrDB []float64) ([]float64, error) {
	return r.sweep(ctx, KindSNR, snrDB, base.WithSNR)
}

// SweepCFO returns the BER at each injected CFO, with the CP-based CFO
// compensation switched by enableComp.
func (r *Runner) SweepCFO(ctx context.Context, base Config, cfoHz []float64, enableComp bool) ([]float64, error) {
	return r.sweep(ctx, KindCFO, cfoHz, base.WithCFOCompensation(enableComp).WithCFO)
}

// SweepDelay returns the BER at each injected delay, with timing
// compensation switched by enableComp.
func (r *Runner) SweepDelay(ctx context.Context, base Config, delaySamples []float64, enableComp bool) ([]float64, error) {
	return r.sweep(ctx, KindDelay, delaySamples, base.WithTimingCompensation(enableComp).WithDelay)
}

// SweepRicianK returns the BER at each Rician K-factor. Fading is enabled
// regardless of base.
func (r *Runner) SweepRicianK(ctx context.Context, base Config, kDB []float64) ([]float64, error) {
	return r.sweep(ctx, KindRicianK, kDB, base.WithRician(true).WithRicianK)
}

func (r *Runner) sweep(ctx context.Context, kind string, values []float64, build func(float64) Config) ([]float64, error) {
	ctx, span := r.tracer.Start(ctx, "sim.sweep", trace.WithAttributes(
		attribute.String("sweep", kind),
		attribute.Int("points", len(values)),
	))
	defer span.End()

	bers := make([]float64, len(values))
	err := r.forEach(ctx, len(values), func(ctx context.Context, i int) error {
		res, err := r.run(ctx, kind, build(values[i]))
		if err != nil {
			return fmt.Errorf("%s sweep point %d (%g): %w", kind, i, values[i], err)
		}
		bers[i] = res.BER
		r.emit(Point{Sweep: kind, Index: i, Value: values[i], BER: res.BER})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return bers, nil
}

// forEach calls fn for 0..n-1 on at most r.parallelism goroutines. The first
// error stops scheduling and is returned; a cancelled ctx does the same and
// returns ctx.Err().
func (r *Runner) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, max(1, min(r.parallelism, n)))

schedule:
	for i := 0; i < n; i++ {
		select {
		case <-workCtx.Done():
			break schedule
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			if workCtx.Err() != nil {
				return
			}
			if err := fn(workCtx, i); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
			}
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (r *Runner) emit(p Point) {
	if r.onPoint == nil {
		return
	}
	r.pointMu.Lock()
	defer r.pointMu.Unlock()
	r.onPoint(p)
}

// SweepSNR runs Runner.SweepSNR on a default runner.
func SweepSNR(ctx context.Context, base Config, snrDB []float64) ([]float64, error) {
	return NewRunner().SweepSNR(ctx, base, snrDB)
}

// SweepCFO runs Runner.SweepCFO on a default runner.
func SweepCFO(ctx context.Context, base Config, cfoHz []float64, enableComp bool) ([]float64, error) {
	return NewRunner().SweepCFO(ctx, base, cfoHz, enableComp)
}

// SweepDelay runs Runner.SweepDelay on a default runner.
func SweepDelay(ctx context.Context, base Config, delaySamples []float64, enableComp bool) ([]float64, error) {
	return NewRunner().SweepDelay(ctx, base, delaySamples, enableComp)
}

// SweepRicianK runs Runner.SweepRicianK on a default runner.
func SweepRicianK(ctx context.Context, base Config, kDB []float64) ([]float64, error) {
	return NewRunner().SweepRicianK(ctx, base, kDB)
}
