package stages

import (
	"context"
	"sort"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// FeatureEngineeringStage derives per-series features from the profiled data:
// a trailing average over the configured window, a relative trend, and a surge
// flag when any observation exceeds mean + 2 standard deviations. A series
// with fewer than two periods gets trend 0 rather than an error.
func FeatureEngineeringStage(p config.Planning) pipeline.Stage {
	return pipeline.Stage{Name: FeatureEngineering, Run: func(_ context.Context, state *plan.RunState) error {
		series := state.Series()
		keys := sortedKeys(series)

		features := make([]plan.FeatureRow, 0, len(keys))
		for _, key := range keys {
			records := series[key]
			qtys := make([]float64, len(records))
			for i, r := range records {
				qtys[i] = r.Quantity
			}

			window := p.EWMAWindow
			if window <= 0 || window > len(qtys) {
				window = len(qtys)
			}

			surge := hasSurge(qtys)
			if surge {
				state.AddAlert(FeatureEngineering, plan.SeverityWarning,
					"demand surge detected for %s at %s", key.SKU, key.Location)
			}

			features = append(features, plan.FeatureRow{
				SKU:         key.SKU,
				Location:    key.Location,
				Periods:     len(records),
				TrailingAvg: meanOf(qtys[len(qtys)-window:]),
				Trend:       relativeTrend(qtys),
				Surge:       surge,
			})
		}

		state.Features = features
		return nil
	}}
}

// relativeTrend compares the mean of the later half of the series against the
// earlier half. Series shorter than two periods have no measurable trend.
func relativeTrend(qtys []float64) float64 {
	if len(qtys) < 2 {
		return 0
	}
	mid := len(qtys) / 2
	earlier := meanOf(qtys[:mid])
	later := meanOf(qtys[mid:])
	if earlier == 0 {
		return 0
	}
	return (later - earlier) / earlier
}

// hasSurge reports whether any observation exceeds mean + 2 standard
// deviations, the anomaly rule used for seasonal spikes.
func hasSurge(qtys []float64) bool {
	if len(qtys) < 2 {
		return false
	}
	threshold := meanOf(qtys) + 2*stdOf(qtys)
	for _, q := range qtys {
		if q > threshold {
			return true
		}
	}
	return false
}

func sortedKeys(series map[plan.SeriesKey][]plan.Record) []plan.SeriesKey {
	keys := make([]plan.SeriesKey, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SKU != keys[j].SKU {
			return keys[i].SKU < keys[j].SKU
		}
		return keys[i].Location < keys[j].Location
	})
	return keys
}
