package forecast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForecastJSON(t *testing.T) {
	req := Request{SKU: "A", Location: "east", History: history("A", "east", 10, 12), Horizon: 3}

	out := `Here is my forecast:
{"period_1": 13, "period_2": 14.5, "period_3": 16}
Let me know if you need anything else.`
	points, err := parseForecastJSON(out, req)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, Point{Period: 3, Quantity: 13}, points[0])
	assert.Equal(t, Point{Period: 4, Quantity: 14.5}, points[1])
	assert.Equal(t, Point{Period: 5, Quantity: 16}, points[2])
}

func TestParseForecastJSON_ClampsNegatives(t *testing.T) {
	req := Request{SKU: "A", Location: "east", History: history("A", "east", 10), Horizon: 2}
	points, err := parseForecastJSON(`{"period_1": -5, "period_2": 8}`, req)
	require.NoError(t, err)
	assert.Equal(t, 0.0, points[0].Quantity)
	assert.Equal(t, 8.0, points[1].Quantity)
}

func TestParseForecastJSON_Errors(t *testing.T) {
	req := Request{SKU: "A", Location: "east", History: history("A", "east", 10), Horizon: 2}

	_, err := parseForecastJSON("no json here", req)
	assert.Error(t, err)

	_, err = parseForecastJSON(`{"period_1": "lots"}`, req)
	assert.Error(t, err, "non-numeric values")

	_, err = parseForecastJSON(`{"period_1": 5}`, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period_2")
}

func TestBuildPrompt(t *testing.T) {
	req := Request{SKU: "SKU-001", Location: "us-east", History: history("SKU-001", "us-east", 10, 12, 11), Horizon: 7}
	prompt := buildPrompt(req)
	assert.Contains(t, prompt, "SKU: SKU-001")
	assert.Contains(t, prompt, "Location: us-east")
	assert.Contains(t, prompt, "period 3: 11")
	assert.Contains(t, prompt, "period_7")
	assert.Equal(t, 1, strings.Count(prompt, "forecasting expert"))
}
