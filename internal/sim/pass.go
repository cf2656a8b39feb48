package sim

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeongseonghan/ntn-linksim/internal/channel"
	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
)

// LinkPredictor yields satellite-to-ground geometry over time.
// *channel.LEOLink implements it.
type LinkPredictor interface {
	At(t time.Time) (channel.LinkState, error)
}

// PassPoint is one time step of a simulated satellite pass.
type PassPoint struct {
	Time         time.Time `json:"time"`
	OffsetS      float64   `json:"offset_s"`
	ElevationDeg float64   `json:"elevation_deg"`
	RangeKm      float64   `json:"range_km"`
	DopplerHz    float64   `json:"doppler_hz"`
	DelayS       float64   `json:"delay_s"`
	Visible      bool      `json:"visible"`
	BER          float64   `json:"ber"`
}

// SweepLEOPass evaluates link at count instants start, start+step, ... and
// runs one simulation per visible instant with cfo_hz set to the predicted
// Doppler. Instants below the station's elevation mask are reported with
// Visible=false and BER 0 and are not simulated.
func (r *Runner) SweepLEOPass(ctx context.Context, base Config, link LinkPredictor, start time.Time, step time.Duration, count int) ([]PassPoint, error) {
	if link == nil {
		return nil, fmt.Errorf("%w: link predictor is required", dsp.ErrInvalidArgument)
	}
	if step <= 0 || count <= 0 {
		return nil, fmt.Errorf("%w: step and count must be positive", dsp.ErrInvalidArgument)
	}

	ctx, span := r.tracer.Start(ctx, "sim.leo_pass", trace.WithAttributes(
		attribute.String("start", start.UTC().Format(time.RFC3339)),
		attribute.String("step", step.String()),
		attribute.Int("points", count),
	))
	defer span.End()

	points := make([]PassPoint, count)
	for i := range points {
		at := start.Add(time.Duration(i) * step)
		st, err := link.At(at)
		if err != nil {
			return nil, fmt.Errorf("link geometry at %s: %w", at.Format(time.RFC3339), err)
		}
		points[i] = PassPoint{
			Time:         at,
			OffsetS:      at.Sub(start).Seconds(),
			ElevationDeg: st.ElevationDeg,
			RangeKm:      st.RangeKm,
			DopplerHz:    st.DopplerHz,
			DelayS:       st.DelayS,
			Visible:      st.Visible,
		}
	}

	err := r.forEach(ctx, count, func(ctx context.Context, i int) error {
		pt := &points[i]
		if !pt.Visible {
			return nil
		}
		res, err := r.run(ctx, KindLEOPass, base.WithCFO(pt.DopplerHz))
		if err != nil {
			return fmt.Errorf("pass point %d (%s): %w", i, pt.Time.Format(time.RFC3339), err)
		}
		pt.BER = res.BER
		r.emit(Point{Sweep: KindLEOPass, Index: i, Value: pt.OffsetS, BER: res.BER})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return points, nil
}

// SweepLEOPass runs Runner.SweepLEOPass on a default runner.
func SweepLEOPass(ctx context.Context, base Config, link LinkPredictor, start time.Time, step time.Duration, count int) ([]PassPoint, error) {
	return NewRunner().SweepLEOPass(ctx, base, link, start, step, count)
}
