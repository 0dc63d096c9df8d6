package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root planning configuration (e.g. from YAML).
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Planning Planning       `yaml:"planning"`
	Forecast Forecast       `yaml:"forecast"`
}

// PipelineConfig names the pipeline and lists its stages in execution order.
type PipelineConfig struct {
	Name   string     `yaml:"name"`
	Stages []StageRef `yaml:"stages"`
}

// StageRef is a single stage entry: either a plain name or name + options.
// In YAML, a stage can be written as:
//   - data_profiling
//   - name: demand_forecasting
//     timeout: 2m
type StageRef struct {
	Name string `yaml:"name"`

	// Timeout applied around the stage (e.g. "60s"). Zero means no deadline.
	Timeout Duration `yaml:"timeout"`
}

// UnmarshalYAML allows a stage to be a string (stage name only) or a struct.
func (s *StageRef) UnmarshalYAML(value *yaml.Node) error {
	var nameOnly string
	if err := value.Decode(&nameOnly); err == nil {
		s.Name = nameOnly
		return nil
	}
	type raw StageRef
	return value.Decode((*raw)(s))
}

// Planning carries every named planning threshold. Tests treat these as
// fixtures; nothing in the stages hard-codes them.
type Planning struct {
	// ServiceLevel is the cycle service level the safety stock targets.
	ServiceLevel float64 `yaml:"service_level"`
	// LeadTimePeriods is the replenishment lead time in input-granularity periods.
	LeadTimePeriods int `yaml:"lead_time_periods"`
	// BudgetLimit caps the cumulative order cost across SKUs.
	BudgetLimit float64 `yaml:"budget_limit"`
	// UnitCost is the default per-unit cost when a SKU has no override.
	UnitCost float64 `yaml:"unit_cost"`
	// UnitCosts overrides UnitCost per SKU.
	UnitCosts map[string]float64 `yaml:"unit_costs"`
	// AlternatePremium is the maximum fraction above the baseline unit cost
	// an alternate supplier may charge (0.2 = 20%).
	AlternatePremium float64 `yaml:"alternate_premium"`
	// Horizon is the number of periods to forecast and plan for.
	Horizon int `yaml:"horizon"`
	// HistoryWindow is how many trailing periods feed the forecast request.
	HistoryWindow int `yaml:"history_window"`
	// EWMAWindow sizes the fallback estimator's moving average. Zero means
	// the full request history.
	EWMAWindow int `yaml:"ewma_window"`
	// SurgeMultiplier sizes the seasonal surge check in logistics planning.
	SurgeMultiplier float64 `yaml:"surge_multiplier"`
	// AdjustmentFactor scales order quantities on a "modify" review decision.
	AdjustmentFactor float64 `yaml:"adjustment_factor"`
	// UtilizationWarn / UtilizationHigh are the warehouse utilization alert
	// thresholds.
	UtilizationWarn float64 `yaml:"utilization_warn"`
	UtilizationHigh float64 `yaml:"utilization_high"`
}

// Forecast selects and budgets the external forecast provider.
type Forecast struct {
	// Provider is "openai" or "none" (fallback-only).
	Provider string `yaml:"provider"`
	// Model is the provider model name, also used as the cache model-version
	// key unless ModelVersion is set.
	Model        string   `yaml:"model"`
	ModelVersion string   `yaml:"model_version"`
	Timeout      Duration `yaml:"timeout"`
	MaxAttempts  int      `yaml:"max_attempts"`
}

// Version returns the cache model-version tag.
func (f Forecast) Version() string {
	if f.ModelVersion != "" {
		return f.ModelVersion
	}
	return f.Model
}

// Duration is a time.Duration that unmarshals from YAML strings (e.g. "60s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default returns the configuration matching the reference planning setup:
// 95% service level, 7-period lead time, a 100000 budget at unit cost 50, a
// 20% alternate-supplier premium, and a 7-period horizon from 30 periods of
// history.
func Default() Config {
	return Config{
		Pipeline: PipelineConfig{Name: "supply-plan"},
		Planning: Planning{
			ServiceLevel:     0.95,
			LeadTimePeriods:  7,
			BudgetLimit:      100000,
			UnitCost:         50,
			AlternatePremium: 0.20,
			Horizon:          7,
			HistoryWindow:    30,
			EWMAWindow:       7,
			SurgeMultiplier:  5,
			AdjustmentFactor: 1.1,
			UtilizationWarn:  0.80,
			UtilizationHigh:  0.95,
		},
		Forecast: Forecast{
			Provider:    "none",
			Model:       "gpt-4o-mini",
			Timeout:     Duration(30 * time.Second),
			MaxAttempts: 1,
		},
	}
}

// Parse parses YAML bytes into a Config, filling unset values from Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func (c *Config) validate() error {
	p := c.Planning
	if p.ServiceLevel <= 0 || p.ServiceLevel >= 1 {
		return fmt.Errorf("planning.service_level must be in (0, 1), got %g", p.ServiceLevel)
	}
	if p.LeadTimePeriods < 1 {
		return fmt.Errorf("planning.lead_time_periods must be >= 1, got %d", p.LeadTimePeriods)
	}
	if p.Horizon < 1 {
		return fmt.Errorf("planning.horizon must be >= 1, got %d", p.Horizon)
	}
	if p.BudgetLimit < 0 {
		return fmt.Errorf("planning.budget_limit must be >= 0, got %g", p.BudgetLimit)
	}
	if p.AlternatePremium < 0 {
		return fmt.Errorf("planning.alternate_premium must be >= 0, got %g", p.AlternatePremium)
	}
	switch c.Forecast.Provider {
	case "", "none", "openai":
	default:
		return fmt.Errorf("forecast.provider %q not supported (use \"openai\" or \"none\")", c.Forecast.Provider)
	}
	return nil
}

// CostOf returns the unit cost for a SKU, honoring per-SKU overrides.
func (p Planning) CostOf(sku string) float64 {
	if c, ok := p.UnitCosts[sku]; ok {
		return c
	}
	return p.UnitCost
}
