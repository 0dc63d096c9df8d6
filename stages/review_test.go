package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/dcshock/planpipe/plan"
)

func TestHumanReview_Suspends(t *testing.T) {
	state := plan.NewRunState("r1", plan.Input{})
	state.Escalate(InventoryOptimization, "SKU-001", plan.SeverityCritical, "budget exhausted")

	err := HumanReviewStage().Run(context.Background(), state)
	require.True(t, pipeline.IsAwaitingApproval(err))

	require.NotEmpty(t, state.Alerts)
	summary := state.Alerts[len(state.Alerts)-1]
	assert.Equal(t, HumanReview, summary.Stage)
	assert.Equal(t, plan.SeverityInfo, summary.Severity)
	assert.Contains(t, summary.Message, "1 escalations (1 critical)")
}
