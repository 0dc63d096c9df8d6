package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/forecast"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
	"github.com/dcshock/planpipe/stages"
)

func testPlanning() config.Planning {
	return config.Planning{
		ServiceLevel:     0.95,
		LeadTimePeriods:  2,
		BudgetLimit:      1e9,
		UnitCost:         50,
		AlternatePremium: 0.20,
		Horizon:          3,
		HistoryWindow:    30,
		EWMAWindow:       3,
		SurgeMultiplier:  5,
		AdjustmentFactor: 1.1,
		UtilizationWarn:  0.80,
		UtilizationHigh:  0.95,
	}
}

// failingProvider simulates an external forecast service that always times
// out.
type failingProvider struct{ calls int }

func (p *failingProvider) Forecast(context.Context, forecast.Request) (forecast.Result, error) {
	p.calls++
	return forecast.Result{}, &forecast.ExternalCallError{Provider: "test", Err: context.DeadlineExceeded}
}

func newTestEngine(t *testing.T, p config.Planning, external forecast.Provider, outages stages.OutageSource) *Engine {
	t.Helper()
	cache := forecast.NewCache()
	provider := forecast.New(external, &forecast.Fallback{Window: p.EWMAWindow}, cache,
		forecast.CallBudget{Timeout: time.Second, MaxAttempts: 1})
	pipe := &pipeline.Pipeline{
		Name: "supply-plan",
		Stages: stages.Sequence(stages.Options{
			Planning: p,
			Forecast: config.Forecast{Model: "test-model"},
			Provider: provider,
			Cache:    cache,
			Outages:  outages,
		}),
	}
	eng, err := New(pipe,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAdjustmentFactor(p.AdjustmentFactor))
	require.NoError(t, err)
	return eng
}

func flatInput(skus int, quantity float64) plan.Input {
	var records []plan.Record
	for i := 0; i < skus; i++ {
		sku := fmt.Sprintf("SKU-%03d", i+1)
		for period := 1; period <= 6; period++ {
			records = append(records, plan.Record{
				SKU: sku, Location: "us-east", Period: period, Quantity: quantity,
			})
		}
	}
	return plan.Input{Records: records}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEngine_NormalRunReachesReview(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)

	runID, err := eng.Start(context.Background(), flatInput(10, 100))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	snap := eng.Status()
	require.NotNil(t, snap)
	assert.Equal(t, runID, snap.RunID)
	assert.Equal(t, plan.StatusAwaitingApproval, snap.Status)
	assert.Empty(t, snap.CriticalEscalations())
	assert.False(t, snap.Inventory.BudgetExceeded)
	assert.Len(t, snap.Forecasts, 30, "10 series x horizon 3")
	assert.Len(t, snap.Inventory.Items, 10)
	for sku, choice := range snap.Suppliers.Items {
		assert.True(t, choice.Sourced(), "SKU %s should be sourced", sku)
	}
}

func TestEngine_StartWhileActive(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)

	_, err := eng.Start(context.Background(), flatInput(2, 100))
	require.NoError(t, err)
	_, err = eng.Start(context.Background(), flatInput(2, 100))
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, eng.AwaitApproval(waitCtx(t)))
	require.NoError(t, eng.Decide(plan.DecisionReject))
	require.NoError(t, eng.WaitDone(waitCtx(t)))

	_, err = eng.Start(context.Background(), flatInput(2, 100))
	assert.NoError(t, err, "a terminal run frees the engine")
}

func TestEngine_ForecastFailureDegradesToFallback(t *testing.T) {
	external := &failingProvider{}
	eng := newTestEngine(t, testPlanning(), external, nil)

	_, err := eng.Start(context.Background(), flatInput(3, 100))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	snap := eng.Status()
	assert.Equal(t, plan.StatusAwaitingApproval, snap.Status, "degraded, not failed")
	require.NotEmpty(t, snap.Forecasts)
	for _, f := range snap.Forecasts {
		assert.Equal(t, plan.ProvenanceFallback, f.Provenance)
	}

	warnings := 0
	for _, a := range snap.Alerts {
		if a.Stage == stages.DemandForecasting && a.Severity == plan.SeverityWarning {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings, "one degradation warning per series")
	assert.Equal(t, 3, external.calls, "one attempt per series, no retries past the cache")
}

func TestEngine_BudgetOverrun(t *testing.T) {
	p := testPlanning()
	p.BudgetLimit = 100

	eng := newTestEngine(t, p, nil, nil)
	_, err := eng.Start(context.Background(), flatInput(1, 100))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	snap := eng.Status()
	assert.Equal(t, plan.StatusAwaitingApproval, snap.Status, "budget overrun is flagged, not fatal")
	assert.NotEmpty(t, snap.CriticalEscalations())
	assert.LessOrEqual(t, snap.Inventory.BudgetUsed, p.BudgetLimit)
}

func TestEngine_OutageWithoutAlternate(t *testing.T) {
	p := testPlanning()
	p.AlternatePremium = 0

	// Flat 3000/period over lead time 2 forces a ~6000-unit order: too big
	// for most alternates, too costly for the rest once S002 is out too.
	eng := newTestEngine(t, p, nil, stages.StaticOutages{"S001", "S002"})
	_, err := eng.Start(context.Background(), flatInput(1, 3000))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	snap := eng.Status()
	assert.Equal(t, plan.StatusAwaitingApproval, snap.Status)
	choice := snap.Suppliers.Items["SKU-001"]
	assert.False(t, choice.Sourced())
	assert.NotEmpty(t, snap.CriticalEscalations())
	assert.Equal(t, []string{"S001", "S002"}, snap.Suppliers.OutagesDetected)
}

func TestEngine_RejectSkipsEvaluation(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)
	_, err := eng.Start(context.Background(), flatInput(2, 100))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	require.NoError(t, eng.Decide(plan.DecisionReject))
	require.NoError(t, eng.WaitDone(waitCtx(t)))

	snap := eng.Status()
	assert.Equal(t, plan.StatusRejected, snap.Status)
	assert.Equal(t, plan.DecisionReject, snap.Decision)
	assert.Nil(t, snap.Metrics, "evaluation never runs on rejection")
	assert.NotNil(t, snap.CompletedAt)
}

func TestEngine_ApproveRunsEvaluation(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)
	_, err := eng.Start(context.Background(), flatInput(2, 100))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	require.NoError(t, eng.Decide(plan.DecisionApprove))
	require.NoError(t, eng.WaitDone(waitCtx(t)))

	snap := eng.Status()
	assert.Equal(t, plan.StatusCompleted, snap.Status)
	assert.Equal(t, plan.DecisionApprove, snap.Decision)
	require.NotNil(t, snap.Metrics)
	assert.Positive(t, snap.Metrics.TotalForecast)
	assert.Positive(t, snap.Metrics.CacheMisses)
}

func TestEngine_ModifyScalesOrders(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)
	_, err := eng.Start(context.Background(), flatInput(1, 100))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	before := eng.Status().Inventory.Items["SKU-001"].OrderQuantity
	require.Positive(t, before)

	require.NoError(t, eng.Decide(plan.DecisionModify))
	require.NoError(t, eng.WaitDone(waitCtx(t)))

	snap := eng.Status()
	assert.Equal(t, plan.StatusCompleted, snap.Status)
	after := snap.Inventory.Items["SKU-001"].OrderQuantity
	assert.Equal(t, math.Trunc(before*1.1+0.5), after)
}

func TestEngine_ModifyOverBudgetFlags(t *testing.T) {
	p := testPlanning()
	p.BudgetLimit = 10000 // flat 100/period x lead 2 x cost 50 lands exactly on the limit

	eng := newTestEngine(t, p, nil, nil)
	_, err := eng.Start(context.Background(), flatInput(1, 100))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	snap := eng.Status()
	assert.Equal(t, 10000.0, snap.Inventory.BudgetUsed)
	assert.False(t, snap.Inventory.BudgetExceeded)

	require.NoError(t, eng.Decide(plan.DecisionModify))
	require.NoError(t, eng.WaitDone(waitCtx(t)))

	snap = eng.Status()
	assert.Equal(t, plan.StatusCompleted, snap.Status)
	assert.Equal(t, 11000.0, snap.Inventory.BudgetUsed)
	assert.True(t, snap.Inventory.BudgetExceeded, "the adjusted plan is over budget")
	assert.NotEmpty(t, snap.CriticalEscalations())
}

func TestEngine_DecideSequencing(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)

	// No run at all.
	assert.ErrorIs(t, eng.Decide(plan.DecisionApprove), ErrInvalidState)

	_, err := eng.Start(context.Background(), flatInput(1, 100))
	require.NoError(t, err)
	require.NoError(t, eng.AwaitApproval(waitCtx(t)))

	assert.Error(t, eng.Decide(plan.Decision("maybe")), "unknown decision values are refused")

	require.NoError(t, eng.Decide(plan.DecisionApprove))
	err = eng.Decide(plan.DecisionReject)
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	require.NoError(t, eng.WaitDone(waitCtx(t)))
	snap := eng.Status()
	assert.Equal(t, plan.DecisionApprove, snap.Decision, "the first decision stands")
	assert.Equal(t, plan.StatusCompleted, snap.Status)
}

func TestEngine_EmptyInputFails(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)
	_, err := eng.Start(context.Background(), plan.Input{})
	require.NoError(t, err, "Start accepts the input; the profiling stage rejects it")
	require.NoError(t, eng.WaitDone(waitCtx(t)))

	snap := eng.Status()
	assert.Equal(t, plan.StatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "no input records")

	assert.Error(t, eng.Decide(plan.DecisionApprove), "failed runs accept no decision")
}

func TestEngine_ConcurrentStatusSeesWholeStages(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)
	_, err := eng.Start(context.Background(), flatInput(5, 100))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			snap := eng.Status()
			if snap != nil {
				for sku, item := range snap.Inventory.Items {
					// A published plan is complete per SKU: no item without
					// its cost fields.
					if item.UnitCost == 0 {
						t.Errorf("partial inventory item for %s: %+v", sku, item)
					}
				}
				if snap.Status == plan.StatusAwaitingApproval {
					return
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, eng.AwaitApproval(waitCtx(t)))
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("status poller never observed the review gate")
	}
}

func TestEngine_AwaitApprovalOnFailedRun(t *testing.T) {
	eng := newTestEngine(t, testPlanning(), nil, nil)
	_, err := eng.Start(context.Background(), plan.Input{})
	require.NoError(t, err)

	err = eng.AwaitApproval(waitCtx(t))
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.DeadlineExceeded), "termination is reported, not a timeout")
}

func TestNew_RequiresReviewGate(t *testing.T) {
	pipe := &pipeline.Pipeline{Name: "no-gate", Stages: []pipeline.Stage{pipeline.Identity("only")}}
	_, err := New(pipe)
	assert.Error(t, err)
}

func TestStatusStore_Isolation(t *testing.T) {
	store := NewStatusStore()
	assert.Nil(t, store.Load())

	state := plan.NewRunState("r1", plan.Input{})
	state.Inventory = plan.InventoryPlan{Items: map[string]plan.InventoryItem{"A": {OrderQuantity: 5}}}
	store.Publish(state)

	// Later writes to the live state never leak into published snapshots.
	state.Inventory.Items["A"] = plan.InventoryItem{OrderQuantity: 99}
	snap := store.Load()
	assert.Equal(t, 5.0, snap.Inventory.Items["A"].OrderQuantity)

	// Nor do reader mutations corrupt the store.
	snap.Inventory.Items["A"] = plan.InventoryItem{OrderQuantity: 1}
	assert.Equal(t, 5.0, store.Load().Inventory.Items["A"].OrderQuantity)
}
