// Package plan defines the run state threaded through the planning pipeline:
// demand records, forecasts, the inventory/supplier/logistics plans, alerts,
// and the run status state machine. One RunState exists per pipeline run; the
// engine is its sole writer, readers get immutable snapshots via Clone.
package plan

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a pipeline run. Transitions are monotonic:
// pending → running → awaiting_approval → {approved → completed | rejected},
// and any non-terminal state may move to failed. No state is revisited.
type Status string

const (
	StatusPending          Status = "pending"
	StatusRunning          Status = "running"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// transitions is the edge set of the run state machine.
var transitions = map[Status][]Status{
	StatusPending:          {StatusRunning, StatusFailed},
	StatusRunning:          {StatusAwaitingApproval, StatusFailed},
	StatusAwaitingApproval: {StatusApproved, StatusRejected, StatusFailed},
	StatusApproved:         {StatusCompleted, StatusFailed},
}

// CanTransition reports whether the edge s → to exists in the state machine.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Severity classifies alerts and escalations.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Provenance marks where a forecast came from.
type Provenance string

const (
	ProvenanceLLM      Provenance = "llm"
	ProvenanceFallback Provenance = "fallback"
)

// Decision is the human review outcome. Empty until the reviewer decides.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionModify  Decision = "modify"
	DecisionReject  Decision = "reject"
)

// Valid reports whether d is one of the accepted decision values.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionModify, DecisionReject:
		return true
	}
	return false
}

// Record is a single demand observation for a SKU at a location in a period.
// UnitPrice is optional (0 = unknown); it drives the budget-truncation
// priority order during inventory optimization.
type Record struct {
	SKU       string  `json:"sku"`
	Location  string  `json:"location"`
	Period    int     `json:"period"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price,omitempty"`
}

// SeriesKey identifies one demand series.
type SeriesKey struct {
	SKU      string `json:"sku"`
	Location string `json:"location"`
}

// FeatureRow carries the engineered features for one series.
type FeatureRow struct {
	SKU         string  `json:"sku"`
	Location    string  `json:"location"`
	Periods     int     `json:"periods"`
	TrailingAvg float64 `json:"trailing_avg"`
	Trend       float64 `json:"trend"`
	Surge       bool    `json:"surge"`
}

// Forecast is one predicted demand quantity for a SKU/location/period.
type Forecast struct {
	SKU        string     `json:"sku"`
	Location   string     `json:"location"`
	Period     int        `json:"period"`
	Quantity   float64    `json:"quantity"`
	Provenance Provenance `json:"provenance"`
}

// InventoryItem is the order recommendation for one SKU.
type InventoryItem struct {
	MeanDemand    float64 `json:"mean_demand"`
	DemandStdDev  float64 `json:"demand_std_dev"`
	SafetyStock   float64 `json:"safety_stock"`
	ReorderPoint  float64 `json:"reorder_point"`
	OrderQuantity float64 `json:"order_quantity"`
	UnitCost      float64 `json:"unit_cost"`
	Cost          float64 `json:"cost"`
}

// InventoryPlan is the budget-constrained allocation across SKUs.
type InventoryPlan struct {
	Items          map[string]InventoryItem `json:"items"`
	BudgetUsed     float64                  `json:"budget_used"`
	BudgetLimit    float64                  `json:"budget_limit"`
	BudgetExceeded bool                     `json:"budget_exceeded"`
}

// Scale multiplies every order quantity (and its cost) by factor. Used by the
// "modify" review decision.
func (p *InventoryPlan) Scale(factor float64) {
	if factor <= 0 || p.Items == nil {
		return
	}
	used := 0.0
	for sku, item := range p.Items {
		item.OrderQuantity = roundQty(item.OrderQuantity * factor)
		item.Cost = item.OrderQuantity * item.UnitCost
		p.Items[sku] = item
		used += item.Cost
	}
	p.BudgetUsed = used
	if p.BudgetLimit > 0 && p.BudgetUsed > p.BudgetLimit {
		p.BudgetExceeded = true
	}
}

func roundQty(q float64) float64 {
	if q < 0 {
		return 0
	}
	return float64(int64(q + 0.5))
}

// SupplierChoice records the sourcing outcome for one SKU. ChosenSupplier is
// empty when no qualifying supplier exists (the SKU is left unsourced).
type SupplierChoice struct {
	ChosenSupplier  string   `json:"chosen_supplier"`
	AlternatesTried []string `json:"alternates_tried,omitempty"`
	UnitCost        float64  `json:"unit_cost"`
	LeadTimeDays    int      `json:"lead_time_days"`
}

// Sourced reports whether a supplier was found for the SKU.
func (c SupplierChoice) Sourced() bool { return c.ChosenSupplier != "" }

// SupplierPlan is the per-SKU sourcing decision set.
type SupplierPlan struct {
	Items           map[string]SupplierChoice `json:"items"`
	OutagesDetected []string                  `json:"outages_detected,omitempty"`
}

// WarehouseLoad is the throughput assignment for one warehouse.
type WarehouseLoad struct {
	RequiredCapacity  int `json:"required_capacity"`
	AvailableCapacity int `json:"available_capacity"`
	Shipments         int `json:"shipments"`
	EstimatedDays     int `json:"estimated_days"`
}

// CapacityAlert flags a warehouse running near or past its capacity.
type CapacityAlert struct {
	WarehouseID string   `json:"warehouse_id"`
	Utilization float64  `json:"utilization"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
}

// LogisticsPlan is the warehouse assignment for the total order quantity.
type LogisticsPlan struct {
	Warehouses     map[string]WarehouseLoad `json:"warehouses"`
	CapacityAlerts []CapacityAlert          `json:"capacity_alerts,omitempty"`
	SurgeShortfall int                      `json:"surge_shortfall,omitempty"`
}

// Alert is an informational or warning message appended by a stage.
type Alert struct {
	Stage    string   `json:"stage"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	At       time.Time `json:"at"`
}

// Escalation is a flagged condition requiring human attention. Reason and
// severity are always non-empty.
type Escalation struct {
	Stage    string    `json:"stage"`
	Severity Severity  `json:"severity"`
	Reason   string    `json:"reason"`
	SKU      string    `json:"sku,omitempty"`
	At       time.Time `json:"at"`
}

// RiskSummary aggregates the flagged conditions for the reviewer.
type RiskSummary struct {
	SupplierOutages int `json:"supplier_outages"`
	UnsourcedSKUs   int `json:"unsourced_skus"`
	CapacityAlerts  int `json:"capacity_alerts"`
}

// Metrics is populated only by the Evaluation stage on approved runs.
type Metrics struct {
	MAPE              *float64    `json:"mape,omitempty"`
	MeanForecast      float64     `json:"mean_forecast"`
	StdForecast       float64     `json:"std_forecast"`
	TotalForecast     float64     `json:"total_forecast"`
	BudgetUtilization float64     `json:"budget_utilization"`
	Risk              RiskSummary `json:"risk"`
	CacheHits         int         `json:"cache_hits"`
	CacheMisses       int         `json:"cache_misses"`
}

// DataError marks malformed or empty input that aborts the run.
type DataError struct {
	Stage  string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

// Input is the payload a run starts from. Actuals are optional observed
// demand for forecast periods, used by Evaluation to compute MAPE.
type Input struct {
	Records []Record `json:"records"`
	Actuals []Record `json:"actuals,omitempty"`
}
