package plan

import (
	"fmt"
	"time"
)

// RunState is the single mutable record threading through all stages. The
// engine owns it exclusively while a run executes; Status() readers only ever
// see snapshots produced by Clone after a stage completes.
type RunState struct {
	RunID        string `json:"run_id"`
	Status       Status `json:"status"`
	CurrentStage string `json:"current_stage,omitempty"`

	RawData      []Record     `json:"raw_data,omitempty"`
	ProfiledData []Record     `json:"profiled_data,omitempty"`
	Features     []FeatureRow `json:"features,omitempty"`
	Forecasts    []Forecast   `json:"forecasts,omitempty"`
	Actuals      []Record     `json:"actuals,omitempty"`

	Inventory InventoryPlan `json:"inventory"`
	Suppliers SupplierPlan  `json:"suppliers"`
	Logistics LogisticsPlan `json:"logistics"`

	Alerts      []Alert      `json:"alerts,omitempty"`
	Escalations []Escalation `json:"escalations,omitempty"`

	Decision Decision `json:"decision,omitempty"`
	Metrics  *Metrics `json:"metrics,omitempty"`
	Error    string   `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRunState returns a pending run for the given input.
func NewRunState(runID string, input Input) *RunState {
	return &RunState{
		RunID:     runID,
		Status:    StatusPending,
		RawData:   append([]Record(nil), input.Records...),
		Actuals:   append([]Record(nil), input.Actuals...),
		StartedAt: time.Now(),
	}
}

// Transition moves the run to the given status, enforcing the state machine
// edges. Terminal statuses also stamp CompletedAt.
func (s *RunState) Transition(to Status) error {
	if !s.Status.CanTransition(to) {
		return fmt.Errorf("invalid status transition %s → %s", s.Status, to)
	}
	s.Status = to
	if to.Terminal() {
		now := time.Now()
		s.CompletedAt = &now
	}
	return nil
}

// Fail marks the run failed from any non-terminal state and records the error.
func (s *RunState) Fail(err error) {
	if s.Status.Terminal() {
		return
	}
	s.Status = StatusFailed
	if err != nil {
		s.Error = err.Error()
	}
	now := time.Now()
	s.CompletedAt = &now
}

// AddAlert appends a structured alert. Empty messages are dropped.
func (s *RunState) AddAlert(stage string, severity Severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		return
	}
	s.Alerts = append(s.Alerts, Alert{
		Stage:    stage,
		Severity: severity,
		Message:  msg,
		At:       time.Now(),
	})
}

// Escalate appends an escalation. Reason must be non-empty; severity defaults
// to critical when unset.
func (s *RunState) Escalate(stage, sku string, severity Severity, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	if reason == "" {
		reason = "unspecified condition"
	}
	if severity == "" {
		severity = SeverityCritical
	}
	s.Escalations = append(s.Escalations, Escalation{
		Stage:    stage,
		Severity: severity,
		Reason:   reason,
		SKU:      sku,
		At:       time.Now(),
	})
}

// CriticalEscalations returns the escalations of critical severity.
func (s *RunState) CriticalEscalations() []Escalation {
	var out []Escalation
	for _, e := range s.Escalations {
		if e.Severity == SeverityCritical {
			out = append(out, e)
		}
	}
	return out
}

// Series groups the profiled records by (SKU, location), preserving the
// per-series period order produced by profiling.
func (s *RunState) Series() map[SeriesKey][]Record {
	out := make(map[SeriesKey][]Record)
	for _, r := range s.ProfiledData {
		key := SeriesKey{SKU: r.SKU, Location: r.Location}
		out[key] = append(out[key], r)
	}
	return out
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	c := *s
	c.RawData = append([]Record(nil), s.RawData...)
	c.ProfiledData = append([]Record(nil), s.ProfiledData...)
	c.Features = append([]FeatureRow(nil), s.Features...)
	c.Forecasts = append([]Forecast(nil), s.Forecasts...)
	c.Actuals = append([]Record(nil), s.Actuals...)
	c.Alerts = append([]Alert(nil), s.Alerts...)
	c.Escalations = append([]Escalation(nil), s.Escalations...)

	c.Inventory.Items = cloneMap(s.Inventory.Items)
	c.Suppliers.Items = cloneMap(s.Suppliers.Items)
	c.Suppliers.OutagesDetected = append([]string(nil), s.Suppliers.OutagesDetected...)
	c.Logistics.Warehouses = cloneMap(s.Logistics.Warehouses)
	c.Logistics.CapacityAlerts = append([]CapacityAlert(nil), s.Logistics.CapacityAlerts...)

	if s.Metrics != nil {
		m := *s.Metrics
		if s.Metrics.MAPE != nil {
			v := *s.Metrics.MAPE
			m.MAPE = &v
		}
		c.Metrics = &m
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// AlternatesTried slices inside SupplierChoice values are never mutated after
// the supplier stage writes them, so a shallow value copy is sufficient here.
func cloneMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
