package stages

import (
	"context"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// LogisticsCapacityStage assigns the total order quantity across the
// warehouse fleet and surfaces capacity risks: per-warehouse utilization
// constraints, an unfulfillable remainder, and the seasonal surge check. All
// shortfalls are informational for the reviewer; none abort the run.
func LogisticsCapacityStage(p config.Planning, fleet *Fleet) pipeline.Stage {
	return pipeline.Stage{Name: LogisticsCapacity, Run: func(_ context.Context, state *plan.RunState) error {
		totalQty := 0
		for _, item := range state.Inventory.Items {
			totalQty += int(item.OrderQuantity)
		}

		var capacityAlerts []plan.CapacityAlert
		for _, w := range fleet.Warehouses() {
			util := w.Utilization()
			if util <= p.UtilizationWarn {
				continue
			}
			severity := plan.SeverityWarning
			if util > p.UtilizationHigh {
				severity = plan.SeverityCritical
			}
			alert := plan.CapacityAlert{
				WarehouseID: w.ID,
				Utilization: util,
				Severity:    severity,
			}
			alert.Message = w.Name + " near capacity"
			capacityAlerts = append(capacityAlerts, alert)
			state.AddAlert(LogisticsCapacity, plan.SeverityWarning,
				"warehouse %s (%s) at %.1f%% utilization, %d units available", w.ID, w.Name, util*100, w.Available())
		}

		assignments, leftover := fleet.PlanShipments(totalQty)
		warehouses := make(map[string]plan.WarehouseLoad, len(assignments))
		for _, a := range assignments {
			warehouses[a.Warehouse.ID] = plan.WarehouseLoad{
				RequiredCapacity:  a.Quantity,
				AvailableCapacity: a.Warehouse.Available(),
				Shipments:         a.Shipments,
				EstimatedDays:     a.EstimatedDays,
			}
		}
		if leftover > 0 {
			capacityAlerts = append(capacityAlerts, plan.CapacityAlert{
				WarehouseID: "fleet",
				Utilization: 1,
				Severity:    plan.SeverityWarning,
				Message:     "insufficient fleet capacity for total demand",
			})
			state.AddAlert(LogisticsCapacity, plan.SeverityWarning,
				"fleet capacity short by %d units for total demand of %d", leftover, totalQty)
		}

		shortfall := fleet.SurgeShortfall(totalQty, p.SurgeMultiplier)
		if shortfall > 0 {
			state.AddAlert(LogisticsCapacity, plan.SeverityWarning,
				"a %.1fx demand surge would exceed fleet capacity by %d units; pre-positioning required", p.SurgeMultiplier, shortfall)
		}

		state.Logistics = plan.LogisticsPlan{
			Warehouses:     warehouses,
			CapacityAlerts: capacityAlerts,
			SurgeShortfall: shortfall,
		}
		return nil
	}}
}
