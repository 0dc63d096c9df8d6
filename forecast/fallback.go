package forecast

import (
	"context"

	"github.com/dcshock/planpipe/plan"
)

// maxTrend bounds the per-horizon trend adjustment so a steep recent decline
// can never drive a prediction negative and a spike cannot run away.
const maxTrend = 0.5

// fallbackConfidence is the fixed confidence reported for statistical
// forecasts.
const fallbackConfidence = 0.5

// Fallback is the deterministic statistical estimator used when the external
// forecast call is unavailable or fails: an exponentially weighted moving
// average over the trailing Window periods with a bounded trend adjustment.
// It is a pure function of the request history: repeated calls with the same
// input yield identical output.
type Fallback struct {
	// Window is the number of trailing periods the EWMA covers. Zero or
	// negative means the full history; the effective window is never larger
	// than the history and never smaller than 1.
	Window int
}

// Forecast implements Provider. It never fails for a valid request.
func (f *Fallback) Forecast(_ context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	window := f.Window
	if window <= 0 || window > len(req.History) {
		window = len(req.History)
	}
	trailing := req.History[len(req.History)-window:]

	// EWMA seeded with the oldest value in the window.
	alpha := 2.0 / (float64(window) + 1.0)
	level := trailing[0].Quantity
	for _, r := range trailing[1:] {
		level = alpha*r.Quantity + (1-alpha)*level
	}

	trend := trendOf(req.History, window)
	last := req.lastPeriod()
	points := make([]Point, 0, req.Horizon)
	for i := 1; i <= req.Horizon; i++ {
		adjusted := level * (1 + trend*float64(i)/float64(req.Horizon))
		if adjusted < 0 {
			adjusted = 0
		}
		points = append(points, Point{Period: last + i, Quantity: adjusted})
	}
	return Result{
		Points:     points,
		Confidence: fallbackConfidence,
		Provenance: plan.ProvenanceFallback,
	}, nil
}

// trendOf compares the mean of the trailing window against the mean of the
// window before it. With fewer than two full windows of history there is no
// basis for a trend and it is zero.
func trendOf(history []plan.Record, window int) float64 {
	if len(history) < 2*window || window < 1 {
		return 0
	}
	recent := meanQty(history[len(history)-window:])
	previous := meanQty(history[len(history)-2*window : len(history)-window])
	if previous <= 0 {
		return 0
	}
	trend := (recent - previous) / previous
	if trend > maxTrend {
		trend = maxTrend
	}
	if trend < -maxTrend {
		trend = -maxTrend
	}
	return trend
}

func meanQty(records []plan.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		sum += r.Quantity
	}
	return sum / float64(len(records))
}
