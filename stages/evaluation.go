package stages

import (
	"context"
	"math"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/forecast"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// EvaluationStage computes run metrics after approval: forecast accuracy
// against any available actuals, summary forecast statistics, budget
// utilization, the risk summary, and the cache hit ratio. It never mutates
// plan fields.
func EvaluationStage(p config.Planning, cache *forecast.Cache) pipeline.Stage {
	return pipeline.Stage{Name: Evaluation, Run: func(_ context.Context, state *plan.RunState) error {
		qtys := make([]float64, len(state.Forecasts))
		total := 0.0
		for i, f := range state.Forecasts {
			qtys[i] = f.Quantity
			total += f.Quantity
		}

		m := plan.Metrics{
			MAPE:          mape(state.Forecasts, state.Actuals),
			MeanForecast:  meanOf(qtys),
			StdForecast:   stdOf(qtys),
			TotalForecast: total,
			Risk:          riskSummary(state),
		}
		if p.BudgetLimit > 0 {
			m.BudgetUtilization = state.Inventory.BudgetUsed / p.BudgetLimit
		}
		if cache != nil {
			stats := cache.Stats()
			m.CacheHits = stats.Hits
			m.CacheMisses = stats.Misses
		}

		state.Metrics = &m
		return nil
	}}
}

// mape returns the mean absolute percentage error of the forecasts against
// matching actuals, or nil when no comparable pair exists. Zero-quantity
// actuals are skipped to keep the ratio defined.
func mape(forecasts []plan.Forecast, actuals []plan.Record) *float64 {
	type key struct {
		sku, location string
		period        int
	}
	observed := make(map[key]float64, len(actuals))
	for _, a := range actuals {
		observed[key{a.SKU, a.Location, a.Period}] = a.Quantity
	}

	sum := 0.0
	n := 0
	for _, f := range forecasts {
		actual, ok := observed[key{f.SKU, f.Location, f.Period}]
		if !ok || actual == 0 {
			continue
		}
		sum += math.Abs(actual-f.Quantity) / math.Abs(actual)
		n++
	}
	if n == 0 {
		return nil
	}
	v := 100 * sum / float64(n)
	return &v
}

func riskSummary(state *plan.RunState) plan.RiskSummary {
	unsourced := 0
	for _, c := range state.Suppliers.Items {
		if !c.Sourced() {
			unsourced++
		}
	}
	return plan.RiskSummary{
		SupplierOutages: len(state.Suppliers.OutagesDetected),
		UnsourcedSKUs:   unsourced,
		CapacityAlerts:  len(state.Logistics.CapacityAlerts),
	}
}
