package stages

import (
	"context"
	"sort"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// DataProfilingStage cleans and orders the raw demand records. Records with a
// missing SKU or non-positive quantity are dropped, each drop logged as an
// info alert. The surviving records are sorted by (SKU, location, period).
// An empty input or a fully-dropped set aborts the run with a DataError.
func DataProfilingStage() pipeline.Stage {
	return pipeline.Stage{Name: DataProfiling, Run: func(_ context.Context, state *plan.RunState) error {
		if len(state.RawData) == 0 {
			return &plan.DataError{Stage: DataProfiling, Reason: "no input records"}
		}

		kept := make([]plan.Record, 0, len(state.RawData))
		for _, r := range state.RawData {
			switch {
			case r.SKU == "":
				state.AddAlert(DataProfiling, plan.SeverityInfo,
					"dropped record with missing SKU (location=%s period=%d)", r.Location, r.Period)
			case r.Quantity <= 0:
				state.AddAlert(DataProfiling, plan.SeverityInfo,
					"dropped record %s/%s period %d: non-positive quantity %g", r.SKU, r.Location, r.Period, r.Quantity)
			default:
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			return &plan.DataError{Stage: DataProfiling, Reason: "all records dropped during profiling"}
		}

		sort.Slice(kept, func(i, j int) bool {
			if kept[i].SKU != kept[j].SKU {
				return kept[i].SKU < kept[j].SKU
			}
			if kept[i].Location != kept[j].Location {
				return kept[i].Location < kept[j].Location
			}
			return kept[i].Period < kept[j].Period
		})

		state.ProfiledData = kept
		return nil
	}}
}
