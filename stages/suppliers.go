package stages

import (
	"context"
	"sort"
)

// Supplier describes one sourcing option.
type Supplier struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Location       string  `json:"location"`
	WeeklyCapacity int     `json:"weekly_capacity"`
	LeadTimeDays   int     `json:"lead_time_days"`
	CostPerUnit    float64 `json:"cost_per_unit"`
	Reliability    float64 `json:"reliability"` // 0-100
}

// OutageSource reports which suppliers are currently unavailable. It is
// queried exactly once per procurement run.
type OutageSource interface {
	Outages(ctx context.Context) ([]string, error)
}

// StaticOutages is a fixed outage list, useful for tests and simulations.
type StaticOutages []string

func (s StaticOutages) Outages(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// Directory holds the known suppliers and the primary assignment per SKU.
// SKUs without an explicit assignment source from the default primary.
type Directory struct {
	suppliers      map[string]Supplier
	primary        map[string]string
	defaultPrimary string
}

// NewDirectory builds a directory. defaultPrimary must be one of the given
// supplier IDs.
func NewDirectory(suppliers []Supplier, defaultPrimary string) *Directory {
	d := &Directory{
		suppliers:      make(map[string]Supplier, len(suppliers)),
		primary:        make(map[string]string),
		defaultPrimary: defaultPrimary,
	}
	for _, s := range suppliers {
		d.suppliers[s.ID] = s
	}
	return d
}

// AssignPrimary sets the preferred supplier for a SKU.
func (d *Directory) AssignPrimary(sku, supplierID string) {
	d.primary[sku] = supplierID
}

// Get returns a supplier by ID.
func (d *Directory) Get(id string) (Supplier, bool) {
	s, ok := d.suppliers[id]
	return s, ok
}

// Primary returns the preferred supplier for a SKU.
func (d *Directory) Primary(sku string) (Supplier, bool) {
	id, ok := d.primary[sku]
	if !ok {
		id = d.defaultPrimary
	}
	return d.Get(id)
}

// Alternates returns every supplier other than exceptID with weekly capacity
// for the required quantity, sorted by reliability descending then cost
// ascending.
func (d *Directory) Alternates(exceptID string, requiredQty float64) []Supplier {
	var out []Supplier
	for id, s := range d.suppliers {
		if id == exceptID {
			continue
		}
		if float64(s.WeeklyCapacity) >= requiredQty {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reliability != out[j].Reliability {
			return out[i].Reliability > out[j].Reliability
		}
		if out[i].CostPerUnit != out[j].CostPerUnit {
			return out[i].CostPerUnit < out[j].CostPerUnit
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DefaultDirectory returns the built-in supplier set, with the premium
// domestic supplier as the primary for every SKU.
func DefaultDirectory() *Directory {
	return NewDirectory([]Supplier{
		{ID: "S001", Name: "Premium Supplies Co", Location: "USA", WeeklyCapacity: 10000, LeadTimeDays: 5, CostPerUnit: 50, Reliability: 95},
		{ID: "S002", Name: "Global Imports Ltd", Location: "China", WeeklyCapacity: 50000, LeadTimeDays: 15, CostPerUnit: 35, Reliability: 85},
		{ID: "S003", Name: "Regional Distributors", Location: "Mexico", WeeklyCapacity: 5000, LeadTimeDays: 7, CostPerUnit: 45, Reliability: 75},
		{ID: "S004", Name: "Fast Track Logistics", Location: "USA", WeeklyCapacity: 8000, LeadTimeDays: 3, CostPerUnit: 60, Reliability: 90},
		{ID: "S005", Name: "Emergency Supply Hub", Location: "USA", WeeklyCapacity: 2000, LeadTimeDays: 1, CostPerUnit: 85, Reliability: 92},
	}, "S001")
}
