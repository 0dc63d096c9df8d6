package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/forecast"
	"github.com/dcshock/planpipe/plan"
)

func TestEvaluation_Metrics(t *testing.T) {
	state := plan.NewRunState("r1", plan.Input{})
	state.Forecasts = []plan.Forecast{
		{SKU: "A", Location: "east", Period: 4, Quantity: 100},
		{SKU: "A", Location: "east", Period: 5, Quantity: 110},
		{SKU: "B", Location: "east", Period: 4, Quantity: 50},
	}
	state.Actuals = []plan.Record{
		{SKU: "A", Location: "east", Period: 4, Quantity: 90},  // 10/90 off
		{SKU: "A", Location: "east", Period: 5, Quantity: 110}, // exact
	}
	state.Inventory = plan.InventoryPlan{BudgetUsed: 25000, BudgetLimit: 100000}
	state.Suppliers = plan.SupplierPlan{
		Items: map[string]plan.SupplierChoice{
			"A": {ChosenSupplier: "S001"},
			"B": {},
		},
		OutagesDetected: []string{"S003"},
	}
	state.Logistics = plan.LogisticsPlan{CapacityAlerts: []plan.CapacityAlert{{WarehouseID: "W004"}}}

	p := config.Planning{BudgetLimit: 100000}
	require.NoError(t, EvaluationStage(p, nil).Run(context.Background(), state))

	m := state.Metrics
	require.NotNil(t, m)
	require.NotNil(t, m.MAPE)
	assert.InDelta(t, 100*(10.0/90.0)/2, *m.MAPE, 1e-6, "mean of 11.1% and 0%")
	assert.InDelta(t, (100.0+110+50)/3, m.MeanForecast, 1e-9)
	assert.InDelta(t, 260, m.TotalForecast, 1e-9)
	assert.InDelta(t, 0.25, m.BudgetUtilization, 1e-9)
	assert.Equal(t, 1, m.Risk.SupplierOutages)
	assert.Equal(t, 1, m.Risk.UnsourcedSKUs)
	assert.Equal(t, 1, m.Risk.CapacityAlerts)
}

func TestEvaluation_NoActualsMeansNoMAPE(t *testing.T) {
	state := plan.NewRunState("r1", plan.Input{})
	state.Forecasts = []plan.Forecast{{SKU: "A", Location: "east", Period: 1, Quantity: 10}}

	require.NoError(t, EvaluationStage(config.Planning{BudgetLimit: 1000}, nil).Run(context.Background(), state))
	require.NotNil(t, state.Metrics)
	assert.Nil(t, state.Metrics.MAPE)
}

func TestEvaluation_ZeroActualsSkipped(t *testing.T) {
	state := plan.NewRunState("r1", plan.Input{})
	state.Forecasts = []plan.Forecast{
		{SKU: "A", Location: "east", Period: 1, Quantity: 10},
		{SKU: "A", Location: "east", Period: 2, Quantity: 20},
	}
	state.Actuals = []plan.Record{
		{SKU: "A", Location: "east", Period: 1, Quantity: 0}, // skipped
		{SKU: "A", Location: "east", Period: 2, Quantity: 10},
	}
	require.NoError(t, EvaluationStage(config.Planning{BudgetLimit: 1000}, nil).Run(context.Background(), state))
	require.NotNil(t, state.Metrics.MAPE)
	assert.InDelta(t, 100.0, *state.Metrics.MAPE, 1e-9, "only the nonzero actual counts")
}

func TestEvaluation_CacheStats(t *testing.T) {
	cache := forecast.NewCache()
	provider := forecast.New(nil, &forecast.Fallback{}, cache, forecast.CallBudget{})
	req := forecast.Request{SKU: "A", Location: "east", History: series("A", "east", 10, 11, 12), Horizon: 2, Model: "m"}
	_, err := provider.Forecast(context.Background(), req)
	require.NoError(t, err)
	_, err = provider.Forecast(context.Background(), req)
	require.NoError(t, err)

	state := plan.NewRunState("r1", plan.Input{})
	require.NoError(t, EvaluationStage(config.Planning{BudgetLimit: 1}, cache).Run(context.Background(), state))
	assert.Equal(t, 1, state.Metrics.CacheHits)
	assert.Equal(t, 1, state.Metrics.CacheMisses)
}
