package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dcshock/planpipe/plan"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// llmConfidence is the confidence reported for externally produced forecasts.
const llmConfidence = 0.8

const promptTemplate = `You are a retail demand forecasting expert.

SKU: %s
Location: %s

Below are the last %d periods of demand:
%s

Task:
1. Identify trend and seasonality if any
2. Forecast demand for the next %d periods
3. Return ONLY valid JSON like:

{
"period_1": 10,
"period_2": 11,
"period_3": 12
}

with one entry per forecast period, period_1 through period_%d.`

// LLMForecaster calls a hosted language model for demand forecasts. Any
// llms.Model works; NewOpenAI wires the OpenAI-backed client the way the
// surrounding configuration selects it.
type LLMForecaster struct {
	model       llms.Model
	name        string
	temperature float64
}

// NewLLMForecaster wraps an existing langchaingo model.
func NewLLMForecaster(name string, model llms.Model) *LLMForecaster {
	return &LLMForecaster{model: model, name: name, temperature: 0.2}
}

// NewOpenAI builds an OpenAI-backed forecaster for the given model name. The
// API key comes from OPENAI_API_KEY.
func NewOpenAI(model string) (*LLMForecaster, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("openai forecaster: OPENAI_API_KEY not set")
	}
	opts := []openai.Option{openai.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai forecaster: %w", err)
	}
	return NewLLMForecaster("openai", client), nil
}

// Forecast implements Provider. Failures (transport, timeout, malformed
// response) are returned as *ExternalCallError so the caller can fall back.
func (f *LLMForecaster) Forecast(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	prompt := buildPrompt(req)
	out, err := llms.GenerateFromSinglePrompt(ctx, f.model, prompt,
		llms.WithTemperature(f.temperature),
	)
	if err != nil {
		return Result{}, &ExternalCallError{Provider: f.name, Err: err}
	}
	points, err := parseForecastJSON(out, req)
	if err != nil {
		return Result{}, &ExternalCallError{Provider: f.name, Err: err}
	}
	return Result{
		Points:     points,
		Confidence: llmConfidence,
		Provenance: plan.ProvenanceLLM,
	}, nil
}

func buildPrompt(req Request) string {
	var history strings.Builder
	for _, r := range req.History {
		fmt.Fprintf(&history, "period %d: %.0f\n", r.Period, r.Quantity)
	}
	return fmt.Sprintf(promptTemplate,
		req.SKU, req.Location, len(req.History), history.String(), req.Horizon, req.Horizon)
}

// parseForecastJSON extracts the first {...} object from the model output and
// reads period_1..period_N. Negative predictions are clamped to zero.
func parseForecastJSON(out string, req Request) ([]Point, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var raw map[string]float64
	if err := json.Unmarshal([]byte(out[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode forecast JSON: %w", err)
	}
	last := req.lastPeriod()
	points := make([]Point, 0, req.Horizon)
	for i := 1; i <= req.Horizon; i++ {
		qty, ok := raw[fmt.Sprintf("period_%d", i)]
		if !ok {
			return nil, fmt.Errorf("response missing period_%d", i)
		}
		if qty < 0 {
			qty = 0
		}
		points = append(points, Point{Period: last + i, Quantity: qty})
	}
	return points, nil
}
