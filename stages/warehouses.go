package stages

import "sort"

// Warehouse models one distribution site's capacity.
type Warehouse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Location           string `json:"location"`
	TotalCapacity      int    `json:"total_capacity"`
	CurrentUtilization int    `json:"current_utilization"`
	OperatingDays      int    `json:"operating_days"` // days per week
	MaxShipmentsPerDay int    `json:"max_shipments_per_day"`
}

// Available returns the remaining capacity in units.
func (w Warehouse) Available() int {
	return w.TotalCapacity - w.CurrentUtilization
}

// Utilization returns the current fill ratio.
func (w Warehouse) Utilization() float64 {
	if w.TotalCapacity <= 0 {
		return 0
	}
	return float64(w.CurrentUtilization) / float64(w.TotalCapacity)
}

// Fleet is the set of warehouses available to the logistics stage.
type Fleet struct {
	warehouses []Warehouse
}

// NewFleet builds a fleet from the given warehouses.
func NewFleet(ws ...Warehouse) *Fleet {
	return &Fleet{warehouses: append([]Warehouse(nil), ws...)}
}

// Warehouses returns the fleet's warehouses.
func (f *Fleet) Warehouses() []Warehouse {
	return append([]Warehouse(nil), f.warehouses...)
}

// TotalAvailable sums the remaining capacity across active warehouses (those
// operating at least five days a week).
func (f *Fleet) TotalAvailable() int {
	total := 0
	for _, w := range f.active() {
		total += w.Available()
	}
	return total
}

func (f *Fleet) active() []Warehouse {
	var out []Warehouse
	for _, w := range f.warehouses {
		if w.OperatingDays >= 5 {
			out = append(out, w)
		}
	}
	return out
}

// Assignment is one warehouse's share of a shipment plan.
type Assignment struct {
	Warehouse     Warehouse
	Quantity      int
	Shipments     int
	EstimatedDays int
}

// PlanShipments distributes totalQty across active warehouses, largest
// available capacity first. The returned leftover is the quantity no
// warehouse could absorb (zero when the fleet can fulfill the demand).
func (f *Fleet) PlanShipments(totalQty int) (assignments []Assignment, leftover int) {
	active := f.active()
	sort.Slice(active, func(i, j int) bool {
		if active[i].Available() != active[j].Available() {
			return active[i].Available() > active[j].Available()
		}
		return active[i].ID < active[j].ID
	})

	remaining := totalQty
	for _, w := range active {
		if remaining <= 0 {
			break
		}
		qty := remaining
		if avail := w.Available(); qty > avail {
			qty = avail
		}
		if qty <= 0 {
			continue
		}
		shipments := ceilDiv(qty, w.MaxShipmentsPerDay)
		days := shipments / max(1, w.OperatingDays/2)
		if days < 1 {
			days = 1
		}
		assignments = append(assignments, Assignment{
			Warehouse:     w,
			Quantity:      qty,
			Shipments:     shipments,
			EstimatedDays: days,
		})
		remaining -= qty
	}
	return assignments, remaining
}

// SurgeShortfall returns how many units of capacity the fleet lacks if demand
// surges by the given multiplier (seasonal peaks like Black Friday). Zero
// means current capacity absorbs the surge.
func (f *Fleet) SurgeShortfall(normalDemand int, multiplier float64) int {
	surge := int(float64(normalDemand) * multiplier)
	available := 0
	for _, w := range f.warehouses {
		available += w.Available()
	}
	if shortfall := surge - available; shortfall > 0 {
		return shortfall
	}
	return 0
}

// DefaultFleet returns the built-in warehouse set. The regional storage site
// runs near capacity, which exercises the constraint alerts.
func DefaultFleet() *Fleet {
	return NewFleet(
		Warehouse{ID: "W001", Name: "East Coast Hub", Location: "New Jersey", TotalCapacity: 100000, CurrentUtilization: 65000, OperatingDays: 7, MaxShipmentsPerDay: 500},
		Warehouse{ID: "W002", Name: "Central Hub", Location: "Texas", TotalCapacity: 80000, CurrentUtilization: 55000, OperatingDays: 7, MaxShipmentsPerDay: 400},
		Warehouse{ID: "W003", Name: "West Coast Hub", Location: "California", TotalCapacity: 120000, CurrentUtilization: 90000, OperatingDays: 7, MaxShipmentsPerDay: 600},
		Warehouse{ID: "W004", Name: "Regional Storage", Location: "Illinois", TotalCapacity: 50000, CurrentUtilization: 48000, OperatingDays: 5, MaxShipmentsPerDay: 200},
	)
}
