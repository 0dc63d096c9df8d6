package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/plan"
)

func TestFleet_PlanShipments(t *testing.T) {
	fleet := DefaultFleet()
	// Available: W001 35000, W002 25000, W003 30000, W004 2000.
	assignments, leftover := fleet.PlanShipments(40000)
	require.Zero(t, leftover)
	require.Len(t, assignments, 2)

	assert.Equal(t, "W001", assignments[0].Warehouse.ID, "largest available capacity first")
	assert.Equal(t, 35000, assignments[0].Quantity)
	assert.Equal(t, 70, assignments[0].Shipments, "35000 units at 500 per shipment")

	assert.Equal(t, "W003", assignments[1].Warehouse.ID)
	assert.Equal(t, 5000, assignments[1].Quantity)
}

func TestFleet_PlanShipments_Overflow(t *testing.T) {
	fleet := DefaultFleet()
	total := fleet.TotalAvailable()
	_, leftover := fleet.PlanShipments(total + 500)
	assert.Equal(t, 500, leftover)
}

func TestFleet_SurgeShortfall(t *testing.T) {
	fleet := DefaultFleet()
	// All four warehouses together have 92000 units free.
	assert.Zero(t, fleet.SurgeShortfall(10000, 5))
	assert.Equal(t, 8000, fleet.SurgeShortfall(20000, 5))
}

func TestLogisticsCapacity_NearCapacityAlerts(t *testing.T) {
	state := inventoryState(map[string]float64{"SKU-001": 1000})
	p := config.Planning{UtilizationWarn: 0.80, UtilizationHigh: 0.95, SurgeMultiplier: 5}

	require.NoError(t, LogisticsCapacityStage(p, DefaultFleet()).Run(context.Background(), state))

	// Only W004 (96% full) crosses the warning threshold, and it is past
	// the high mark too.
	require.Len(t, state.Logistics.CapacityAlerts, 1)
	alert := state.Logistics.CapacityAlerts[0]
	assert.Equal(t, "W004", alert.WarehouseID)
	assert.Equal(t, plan.SeverityCritical, alert.Severity)
	assert.InDelta(t, 0.96, alert.Utilization, 1e-9)

	assert.NotEmpty(t, state.Logistics.Warehouses)
	assert.Zero(t, state.Logistics.SurgeShortfall, "5x of 1000 fits the free 92000 units")
}

func TestLogisticsCapacity_FleetOverflow(t *testing.T) {
	fleet := NewFleet(
		Warehouse{ID: "W1", Name: "Tiny", TotalCapacity: 1000, CurrentUtilization: 500, OperatingDays: 7, MaxShipmentsPerDay: 100},
	)
	state := inventoryState(map[string]float64{"SKU-001": 2000})
	p := config.Planning{UtilizationWarn: 0.80, UtilizationHigh: 0.95, SurgeMultiplier: 5}

	require.NoError(t, LogisticsCapacityStage(p, fleet).Run(context.Background(), state))

	load := state.Logistics.Warehouses["W1"]
	assert.Equal(t, 500, load.RequiredCapacity, "assignment capped at available capacity")

	var overflow bool
	for _, a := range state.Logistics.CapacityAlerts {
		if a.WarehouseID == "fleet" {
			overflow = true
			assert.Equal(t, plan.SeverityWarning, a.Severity)
		}
	}
	assert.True(t, overflow, "unfulfillable demand is flagged, not fatal")
	assert.Positive(t, state.Logistics.SurgeShortfall)
}

func TestLogisticsCapacity_WeekendOnlySiteExcluded(t *testing.T) {
	fleet := NewFleet(
		Warehouse{ID: "W1", Name: "Main", TotalCapacity: 10000, CurrentUtilization: 0, OperatingDays: 7, MaxShipmentsPerDay: 500},
		Warehouse{ID: "W2", Name: "Weekend", TotalCapacity: 10000, CurrentUtilization: 0, OperatingDays: 2, MaxShipmentsPerDay: 500},
	)
	state := inventoryState(map[string]float64{"SKU-001": 1000})
	p := config.Planning{UtilizationWarn: 0.80, UtilizationHigh: 0.95, SurgeMultiplier: 1}

	require.NoError(t, LogisticsCapacityStage(p, fleet).Run(context.Background(), state))
	_, assigned := state.Logistics.Warehouses["W2"]
	assert.False(t, assigned, "sites operating under 5 days/week take no load")
}
