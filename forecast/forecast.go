// Package forecast provides the demand forecasting capability used by the
// planning pipeline: an external LLM-backed forecaster, a deterministic
// statistical fallback, and a per-run cache that guarantees at most one
// external call per unique (SKU, location, period, model) key.
package forecast

import (
	"context"
	"fmt"

	"github.com/dcshock/planpipe/plan"
)

// Request asks for a demand forecast for one series. History must be in
// ascending period order with at least one record; Horizon is the number of
// periods to predict past the last historical period.
type Request struct {
	SKU      string
	Location string
	History  []plan.Record
	Horizon  int
	Model    string
}

func (r Request) validate() error {
	if r.Horizon < 1 {
		return fmt.Errorf("forecast %s/%s: horizon must be >= 1, got %d", r.SKU, r.Location, r.Horizon)
	}
	if len(r.History) == 0 {
		return fmt.Errorf("forecast %s/%s: empty history", r.SKU, r.Location)
	}
	return nil
}

// lastPeriod returns the period of the most recent history record.
func (r Request) lastPeriod() int {
	return r.History[len(r.History)-1].Period
}

// Point is one predicted quantity.
type Point struct {
	Period   int
	Quantity float64
}

// Result is a forecast for one series over the requested horizon.
type Result struct {
	Points     []Point
	Confidence float64
	Provenance plan.Provenance

	// FallbackReason is set when Provenance is fallback: the external error
	// that forced degradation, or a note that no external provider is wired.
	FallbackReason string
}

// Provider is the forecasting capability contract. Implementations must
// return exactly Horizon points with non-negative quantities.
type Provider interface {
	Forecast(ctx context.Context, req Request) (Result, error)
}

// ExternalCallError marks a failed external forecast call (timeout, malformed
// response, quota). It is recovered locally via the fallback estimator and is
// never fatal to a run.
type ExternalCallError struct {
	Provider string
	Err      error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("external forecast call (%s): %v", e.Provider, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }
