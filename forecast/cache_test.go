package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/planpipe/plan"
)

func TestCache_MissThenHit(t *testing.T) {
	c := NewCache()
	req := Request{SKU: "A", Location: "east", History: history("A", "east", 10, 11), Horizon: 3, Model: "gpt-4o-mini"}

	_, ok := c.GetSeries(req)
	require.False(t, ok)

	stored := Result{
		Points:     []Point{{Period: 3, Quantity: 12}, {Period: 4, Quantity: 13}, {Period: 5, Quantity: 14}},
		Confidence: 0.8,
		Provenance: plan.ProvenanceLLM,
	}
	c.PutSeries(req, stored)
	assert.Equal(t, 3, c.Len())

	got, ok := c.GetSeries(req)
	require.True(t, ok)
	assert.Equal(t, stored.Points, got.Points)
	assert.Equal(t, plan.ProvenanceLLM, got.Provenance, "cached provenance is preserved")
	assert.Equal(t, 0.8, got.Confidence)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
}

func TestCache_PartialSeriesIsMiss(t *testing.T) {
	c := NewCache()
	short := Request{SKU: "A", Location: "east", History: history("A", "east", 10, 11), Horizon: 2, Model: "m"}
	c.PutSeries(short, Result{
		Points:     []Point{{Period: 3, Quantity: 12}, {Period: 4, Quantity: 13}},
		Provenance: plan.ProvenanceLLM,
	})

	long := short
	long.Horizon = 4
	_, ok := c.GetSeries(long)
	assert.False(t, ok, "a longer horizon over the same series must miss")

	// Same series under a different model version is a separate key.
	other := short
	other.Model = "m2"
	_, ok = c.GetSeries(other)
	assert.False(t, ok)
}

func TestCache_FallbackEntriesKeepProvenance(t *testing.T) {
	c := NewCache()
	req := Request{SKU: "B", Location: "west", History: history("B", "west", 5), Horizon: 1, Model: "m"}
	c.PutSeries(req, Result{
		Points:     []Point{{Period: 2, Quantity: 5}},
		Confidence: 0.5,
		Provenance: plan.ProvenanceFallback,
	})
	got, ok := c.GetSeries(req)
	require.True(t, ok)
	assert.Equal(t, plan.ProvenanceFallback, got.Provenance)
	assert.NotEmpty(t, got.FallbackReason)
}
