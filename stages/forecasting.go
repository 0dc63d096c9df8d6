package stages

import (
	"context"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/forecast"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// DemandForecastingStage requests a forecast for every (SKU, location) series
// present after profiling. External call failures never surface here; the
// provider degrades to its deterministic fallback, and this stage records a
// warning alert per degraded series so reviewers can tell the runs apart.
func DemandForecastingStage(p config.Planning, fc config.Forecast, provider forecast.Provider) pipeline.Stage {
	return pipeline.Stage{Name: DemandForecasting, Run: func(ctx context.Context, state *plan.RunState) error {
		series := state.Series()
		keys := sortedKeys(series)

		forecasts := make([]plan.Forecast, 0, len(keys)*p.Horizon)
		for _, key := range keys {
			history := series[key]
			if w := p.HistoryWindow; w > 0 && len(history) > w {
				history = history[len(history)-w:]
			}

			res, err := provider.Forecast(ctx, forecast.Request{
				SKU:      key.SKU,
				Location: key.Location,
				History:  history,
				Horizon:  p.Horizon,
				Model:    fc.Version(),
			})
			if err != nil {
				return err
			}

			if res.Provenance == plan.ProvenanceFallback {
				state.AddAlert(DemandForecasting, plan.SeverityWarning,
					"forecast for %s/%s degraded to statistical fallback: %s", key.SKU, key.Location, res.FallbackReason)
			}

			for _, pt := range res.Points {
				forecasts = append(forecasts, plan.Forecast{
					SKU:        key.SKU,
					Location:   key.Location,
					Period:     pt.Period,
					Quantity:   pt.Quantity,
					Provenance: res.Provenance,
				})
			}
		}

		state.Forecasts = forecasts
		return nil
	}}
}
