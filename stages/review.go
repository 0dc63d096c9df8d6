package stages

import (
	"context"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

// HumanReviewStage suspends the run for an external approval decision. It
// records a summary alert for the reviewer and returns ErrAwaitingApproval;
// the engine parks the run until Decide is called. There is no timeout: the
// approval authority is human.
func HumanReviewStage() pipeline.Stage {
	return pipeline.Stage{Name: HumanReview, Run: func(_ context.Context, state *plan.RunState) error {
		critical := len(state.CriticalEscalations())
		state.AddAlert(HumanReview, plan.SeverityInfo,
			"review requested: %d escalations (%d critical), budget exceeded: %t",
			len(state.Escalations), critical, state.Inventory.BudgetExceeded)
		return pipeline.ErrAwaitingApproval
	}}
}
