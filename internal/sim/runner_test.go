package sim

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

type recordedRun struct {
	sweep string
	nBits int
	ber   float64
	err   error
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (f *fakeRecorder) ObserveRun(sweep string, _ time.Duration, nBits int, ber float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, recordedRun{sweep, nBits, ber, err})
}

func (f *fakeRecorder) count(sweep string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.runs {
		if r.sweep == sweep {
			n++
		}
	}
	return n
}

func TestSweepSNR_OrderAndDeterminism(t *testing.T) {
	base := DefaultConfig().WithSymbols(50)
	snrs := []float64{0, 4, 8, 12}

	sequential, err := NewRunner(WithParallelism(1)).SweepSNR(context.Background(), base, snrs)
	if err != nil {
		t.Fatalf("SweepSNR: %v", err)
	}
	parallel, err := NewRunner(WithParallelism(4)).SweepSNR(context.Background(), base, snrs)
	if err != nil {
		t.Fatalf("SweepSNR: %v", err)
	}

	for i, snr := range snrs {
		single := mustRun(t, base.WithSNR(snr))
		if sequential[i] != single.BER || parallel[i] != single.BER {
			t.Errorf("point %d (snr %g): sequential %.5f parallel %.5f single %.5f",
				i, snr, sequential[i], parallel[i], single.BER)
		}
	}
	if sequential[0] <= sequential[len(sequential)-1] {
		t.Errorf("BER should fall with SNR: %v", sequential)
	}
}

func TestSweepCFO_TrendAndCompensation(t *testing.T) {
	base := DefaultConfig().WithSeed(7).WithSNR(25)
	cfos := []float64{0, 100, 300, 1000}

	bers, err := SweepCFO(context.Background(), base, cfos, false)
	if err != nil {
		t.Fatalf("SweepCFO: %v", err)
	}
	t.Logf("BER vs CFO (no comp): %v", bers)
	if bers[0] >= bers[len(bers)-1] {
		t.Errorf("BER at zero CFO should be the lowest: %v", bers)
	}
	for i := 1; i < len(bers); i++ {
		if bers[i] < bers[i-1]-0.02 {
			t.Errorf("BER fell from %.4f to %.4f as CFO grew", bers[i-1], bers[i])
		}
	}

	strong := DefaultConfig().WithSeed(7).WithSNR(40).WithSymbols(50)
	cfos = []float64{10e3, 20e3, 30e3}
	noComp, err := SweepCFO(context.Background(), strong, cfos, false)
	if err != nil {
		t.Fatalf("SweepCFO: %v", err)
	}
	withComp, err := SweepCFO(context.Background(), strong, cfos, true)
	if err != nil {
		t.Fatalf("SweepCFO: %v", err)
	}
	for i, cfo := range cfos {
		if withComp[i] >= noComp[i] {
			t.Errorf("cfo %g Hz: compensated %.4f >= uncompensated %.4f", cfo, withComp[i], noComp[i])
		}
	}
}

func TestSweepDelay_TrendAndCompensation(t *testing.T) {
	base := DefaultConfig().WithSeed(7).WithSNR(25)
	delays := []float64{0, 4, 8, 16, 24}

	noComp, err := SweepDelay(context.Background(), base, delays, false)
	if err != nil {
		t.Fatalf("SweepDelay: %v", err)
	}
	withComp, err := SweepDelay(context.Background(), base, delays, true)
	if err != nil {
		t.Fatalf("SweepDelay: %v", err)
	}
	t.Logf("BER vs delay: no comp %v, comp %v", noComp, withComp)

	if noComp[0] >= 0.01 {
		t.Errorf("zero delay BER %.4f", noComp[0])
	}
	for i := 1; i < len(delays); i++ {
		if noComp[i] <= 0.3 {
			t.Errorf("delay %g without compensation: BER %.4f, expected near 0.5", delays[i], noComp[i])
		}
		if withComp[i] > noComp[i]+0.001 {
			t.Errorf("delay %g: compensation made BER worse (%.4f > %.4f)", delays[i], withComp[i], noComp[i])
		}
	}
}

func TestSweepRicianK_Trend(t *testing.T) {
	base := DefaultConfig().WithSeed(7).WithSNR(12)
	ks := []float64{0, 10, 20}

	bers, err := SweepRicianK(context.Background(), base, ks)
	if err != nil {
		t.Fatalf("SweepRicianK: %v", err)
	}
	t.Logf("BER vs K: %v", bers)
	for i := 1; i < len(bers); i++ {
		if bers[i] > bers[i-1]+0.005 {
			t.Errorf("K %g -> %g dB: BER rose from %.5f to %.5f", ks[i-1], ks[i], bers[i-1], bers[i])
		}
	}

	// fading is forced on
	direct := mustRun(t, base.WithRician(true).WithRicianK(0))
	if bers[0] != direct.BER {
		t.Errorf("sweep point %.5f != direct Rician run %.5f", bers[0], direct.BER)
	}
}

func TestRunner_OnPointAndRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	var (
		mu     sync.Mutex
		points []Point
	)
	r := NewRunner(
		WithParallelism(3),
		WithRecorder(rec),
		WithOnPoint(func(p Point) {
			mu.Lock()
			defer mu.Unlock()
			points = append(points, p)
		}),
	)

	snrs := []float64{0, 5, 10, 15, 20}
	bers, err := r.SweepSNR(context.Background(), DefaultConfig().WithSymbols(20), snrs)
	if err != nil {
		t.Fatalf("SweepSNR: %v", err)
	}

	if len(points) != len(snrs) {
		t.Fatalf("got %d point callbacks, want %d", len(points), len(snrs))
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Index < points[j].Index })
	for i, p := range points {
		if p.Sweep != KindSNR || p.Value != snrs[i] || p.BER != bers[i] {
			t.Errorf("point %d = %+v, want value %g ber %g", i, p, snrs[i], bers[i])
		}
	}
	if got := rec.count(KindSNR); got != len(snrs) {
		t.Errorf("recorder saw %d snr runs, want %d", got, len(snrs))
	}

	if _, err := r.Run(context.Background(), DefaultConfig().WithSymbols(5)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := rec.count(KindSingle); got != 1 {
		t.Errorf("recorder saw %d single runs, want 1", got)
	}
}

func TestRunner_PropagatesPointError(t *testing.T) {
	rec := &fakeRecorder{}
	_, err := NewRunner(WithRecorder(rec)).SweepDelay(context.Background(), DefaultConfig().WithSymbols(10), []float64{0, -1, 2}, false)
	if !errors.Is(err, dsp.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	failed := 0
	rec.mu.Lock()
	for _, r := range rec.runs {
		if r.err != nil {
			failed++
		}
	}
	rec.mu.Unlock()
	if failed != 1 {
		t.Errorf("recorder saw %d failed runs, want 1", failed)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(WithParallelism(2)).SweepSNR(ctx, DefaultConfig().WithSymbols(10), []float64{0, 1, 2, 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunner_EmptySweep(t *testing.T) {
	bers, err := SweepSNR(context.Background(), DefaultConfig(), nil)
	if err != nil || len(bers) != 0 {
		t.Fatalf("empty sweep: %v, %v", bers, err)
	}
}
