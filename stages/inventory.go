package stages

import (
	"context"
	"math"
	"sort"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// InventoryOptimizationStage turns the forecasts into per-SKU order
// recommendations under the budget constraint. Safety stock uses the standard
// cycle-service-level formula: z(serviceLevel) x demand-std-dev x sqrt(lead
// time); the reorder point adds mean demand over the lead time. Orders are
// then allocated greedily in descending revenue-impact order; once the budget
// would be exceeded, remaining SKUs get zero allocation and a critical
// escalation each. BudgetExceeded reflects whether even the minimal
// safety-stock set fits the budget, never whether truncation happened.
func InventoryOptimizationStage(p config.Planning) pipeline.Stage {
	return pipeline.Stage{Name: InventoryOptimization, Run: func(_ context.Context, state *plan.RunState) error {
		demand := make(map[string][]float64)
		for _, f := range state.Forecasts {
			demand[f.SKU] = append(demand[f.SKU], f.Quantity)
		}

		z := zScore(p.ServiceLevel)
		lead := float64(p.LeadTimePeriods)

		items := make(map[string]plan.InventoryItem, len(demand))
		for sku, qtys := range demand {
			mean := meanOf(qtys)
			std := stdOf(qtys)
			safety := z * std * math.Sqrt(lead)
			reorder := mean*lead + safety
			unitCost := p.CostOf(sku)
			qty := roundQty(reorder)
			items[sku] = plan.InventoryItem{
				MeanDemand:    mean,
				DemandStdDev:  std,
				SafetyStock:   safety,
				ReorderPoint:  reorder,
				OrderQuantity: qty,
				UnitCost:      unitCost,
				Cost:          qty * unitCost,
			}
		}

		order := byRevenueImpact(items, demand, state.ProfiledData)

		budgetUsed := 0.0
		minimalCost := 0.0
		truncated := 0
		truncating := false
		for _, sku := range order {
			item := items[sku]
			minimalCost += roundQty(item.SafetyStock) * item.UnitCost

			// A hard cutoff: once one SKU overflows the budget, every SKU
			// behind it is zeroed too, even if it would still fit.
			if truncating || budgetUsed+item.Cost > p.BudgetLimit {
				truncating = true
				state.Escalate(InventoryOptimization, sku, plan.SeverityCritical,
					"budget exhausted: no allocation for %s (needed %.0f, %.0f remaining of %.0f)",
					sku, item.Cost, p.BudgetLimit-budgetUsed, p.BudgetLimit)
				item.OrderQuantity = 0
				item.Cost = 0
				items[sku] = item
				truncated++
				continue
			}
			budgetUsed += item.Cost
		}

		exceeded := budgetUsed > p.BudgetLimit || minimalCost > p.BudgetLimit
		if minimalCost > p.BudgetLimit {
			state.Escalate(InventoryOptimization, "", plan.SeverityCritical,
				"minimal safety-stock cost %.0f exceeds budget limit %.0f", minimalCost, p.BudgetLimit)
		}
		if truncated > 0 {
			state.AddAlert(InventoryOptimization, plan.SeverityWarning,
				"budget truncation: %d of %d SKUs received zero allocation", truncated, len(items))
		}

		state.Inventory = plan.InventoryPlan{
			Items:          items,
			BudgetUsed:     budgetUsed,
			BudgetLimit:    p.BudgetLimit,
			BudgetExceeded: exceeded,
		}
		return nil
	}}
}

// byRevenueImpact orders SKUs by total forecast quantity times unit price,
// descending, so high-revenue SKUs get budget first. Ties break on SKU
// ascending to keep allocation deterministic.
func byRevenueImpact(items map[string]plan.InventoryItem, demand map[string][]float64, profiled []plan.Record) []string {
	prices := make(map[string]float64)
	for _, r := range profiled {
		if r.UnitPrice > prices[r.SKU] {
			prices[r.SKU] = r.UnitPrice
		}
	}

	impact := make(map[string]float64, len(items))
	skus := make([]string, 0, len(items))
	for sku, item := range items {
		price := prices[sku]
		if price == 0 {
			price = item.UnitCost
		}
		total := 0.0
		for _, q := range demand[sku] {
			total += q
		}
		impact[sku] = total * price
		skus = append(skus, sku)
	}

	sort.Slice(skus, func(i, j int) bool {
		if impact[skus[i]] != impact[skus[j]] {
			return impact[skus[i]] > impact[skus[j]]
		}
		return skus[i] < skus[j]
	})
	return skus
}

// zScore returns the standard normal quantile for the given service level
// using Acklam's rational approximation (relative error below 1.15e-9 across
// the open unit interval).
func zScore(serviceLevel float64) float64 {
	p := serviceLevel
	if p <= 0 || p >= 1 {
		return 0
	}

	a := [6]float64{-39.69683028665376, 220.9460984245205, -275.9285104469687, 138.3577518672690, -30.66479806614716, 2.506628277459239}
	b := [5]float64{-54.47609879822406, 161.5858368580409, -155.6989798598866, 66.80131188771972, -13.28068155288572}
	c := [6]float64{-0.007784894002430293, -0.3223964580411365, -2.400758277161838, -2.549732539343734, 4.374664141464968, 2.938163982698783}
	d := [4]float64{0.007784695709041462, 0.3224671290700398, 2.445134137142996, 3.754408661907416}

	const low, high = 0.02425, 1 - 0.02425
	switch {
	case p < low:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p > high:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	default:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
}
