package stages

import (
	"context"
	"sort"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// SupplierProcurementStage sources each SKU with a positive order quantity.
// The outage source is queried once; a SKU whose primary supplier is out gets
// the alternates tried in priority order (reliability descending, cost
// ascending), accepting the first with enough capacity and a unit cost within
// the configured premium over the primary's baseline. A SKU with no
// qualifying supplier stays unsourced with a critical escalation, and the run
// continues.
func SupplierProcurementStage(p config.Planning, dir *Directory, outages OutageSource) pipeline.Stage {
	return pipeline.Stage{Name: SupplierProcurement, Run: func(ctx context.Context, state *plan.RunState) error {
		down := make(map[string]bool)
		ids, err := outages.Outages(ctx)
		if err != nil {
			state.AddAlert(SupplierProcurement, plan.SeverityWarning,
				"outage signal unavailable, assuming all suppliers active: %v", err)
		}
		for _, id := range ids {
			down[id] = true
		}

		detected := make([]string, 0, len(down))
		for id := range down {
			if s, ok := dir.Get(id); ok {
				detected = append(detected, id)
				state.AddAlert(SupplierProcurement, plan.SeverityWarning,
					"supplier outage: %s (%s)", s.Name, id)
			}
		}
		sort.Strings(detected)

		skus := make([]string, 0, len(state.Inventory.Items))
		for sku := range state.Inventory.Items {
			skus = append(skus, sku)
		}
		sort.Strings(skus)

		items := make(map[string]plan.SupplierChoice, len(skus))
		for _, sku := range skus {
			qty := state.Inventory.Items[sku].OrderQuantity
			if qty <= 0 {
				continue
			}

			primary, ok := dir.Primary(sku)
			if !ok {
				state.Escalate(SupplierProcurement, sku, plan.SeverityCritical,
					"no primary supplier configured for %s", sku)
				items[sku] = plan.SupplierChoice{}
				continue
			}

			if !down[primary.ID] {
				items[sku] = plan.SupplierChoice{
					ChosenSupplier: primary.ID,
					UnitCost:       primary.CostPerUnit,
					LeadTimeDays:   primary.LeadTimeDays,
				}
				continue
			}

			maxCost := primary.CostPerUnit * (1 + p.AlternatePremium)
			choice := plan.SupplierChoice{}
			for _, alt := range dir.Alternates(primary.ID, qty) {
				if down[alt.ID] {
					continue
				}
				choice.AlternatesTried = append(choice.AlternatesTried, alt.ID)
				if alt.CostPerUnit > maxCost {
					continue
				}
				choice.ChosenSupplier = alt.ID
				choice.UnitCost = alt.CostPerUnit
				choice.LeadTimeDays = alt.LeadTimeDays
				state.AddAlert(SupplierProcurement, plan.SeverityInfo,
					"alternative sourcing for %s: %s (lead time %dd)", sku, alt.Name, alt.LeadTimeDays)
				break
			}
			if !choice.Sourced() {
				state.Escalate(SupplierProcurement, sku, plan.SeverityCritical,
					"no qualifying alternate for %s: primary %s in outage, %d alternates tried within %.0f%% premium",
					sku, primary.ID, len(choice.AlternatesTried), p.AlternatePremium*100)
			}
			items[sku] = choice
		}

		state.Suppliers = plan.SupplierPlan{
			Items:           items,
			OutagesDetected: detected,
		}
		return nil
	}}
}
