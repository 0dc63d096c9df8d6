package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/dcshock/planpipe/plan"
)

// CallBudget bounds the external forecast call: per-attempt timeout and the
// maximum number of attempts before degrading to the fallback.
type CallBudget struct {
	Timeout     time.Duration
	MaxAttempts int
}

func (b CallBudget) withDefaults() CallBudget {
	if b.Timeout <= 0 {
		b.Timeout = 30 * time.Second
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 1
	}
	return b
}

// Forecaster is the composite Provider the forecasting stage uses: cache
// lookup first, then the external call within its budget, then the
// deterministic fallback. It never fails for a valid request: external
// failure degrades, it does not abort.
type Forecaster struct {
	external Provider
	fallback *Fallback
	cache    *Cache
	budget   CallBudget
}

// New builds a Forecaster. external may be nil (fallback-only operation, e.g.
// offline or unconfigured deployments); fallback and cache are required.
func New(external Provider, fallback *Fallback, cache *Cache, budget CallBudget) *Forecaster {
	return &Forecaster{
		external: external,
		fallback: fallback,
		cache:    cache,
		budget:   budget.withDefaults(),
	}
}

// Cache exposes the underlying cache for statistics reporting.
func (f *Forecaster) Cache() *Cache { return f.cache }

// Forecast implements Provider. The cache is consulted before any external
// call, so at most one external call happens per unique
// (SKU, location, period, model) key per run; cached provenance is returned
// as stored, never overwritten.
func (f *Forecaster) Forecast(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if res, ok := f.cache.GetSeries(req); ok {
		return res, nil
	}

	var callErr error
	if f.external != nil {
		for attempt := 0; attempt < f.budget.MaxAttempts; attempt++ {
			res, err := f.tryExternal(ctx, req)
			if err == nil {
				f.cache.PutSeries(req, res)
				return res, nil
			}
			callErr = err
			if ctx.Err() != nil {
				break
			}
		}
	}

	res, err := f.fallback.Forecast(ctx, req)
	if err != nil {
		return Result{}, err
	}
	switch {
	case callErr != nil:
		res.FallbackReason = callErr.Error()
	default:
		res.FallbackReason = "no external forecast provider configured"
	}
	f.cache.PutSeries(req, res)
	return res, nil
}

func (f *Forecaster) tryExternal(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.budget.Timeout)
	defer cancel()
	res, err := f.external.Forecast(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if len(res.Points) != req.Horizon {
		return Result{}, &ExternalCallError{
			Provider: "external",
			Err:      fmt.Errorf("returned %d points, want %d", len(res.Points), req.Horizon),
		}
	}
	res.Provenance = plan.ProvenanceLLM
	return res, nil
}
