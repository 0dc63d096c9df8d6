package stages

import (
	"math"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/forecast"
	"github.com/dcshock/planpipe/pipeline"
)

// Stage names, also the registry keys for config-driven assembly.
const (
	DataProfiling         = "data_profiling"
	FeatureEngineering    = "feature_engineering"
	DemandForecasting     = "demand_forecasting"
	InventoryOptimization = "inventory_optimization"
	SupplierProcurement   = "supplier_procurement"
	LogisticsCapacity     = "logistics_capacity"
	HumanReview           = "human_review"
	Evaluation            = "evaluation"
)

// Order is the fixed execution order of the planning pipeline.
var Order = []string{
	DataProfiling,
	FeatureEngineering,
	DemandForecasting,
	InventoryOptimization,
	SupplierProcurement,
	LogisticsCapacity,
	HumanReview,
	Evaluation,
}

// Options carries the dependencies the planning stages need. Nil fields get
// working defaults: the built-in supplier directory and warehouse fleet, an
// empty outage source, and a fallback-only forecaster.
type Options struct {
	Planning  config.Planning
	Forecast  config.Forecast
	Provider  forecast.Provider
	Cache     *forecast.Cache
	Directory *Directory
	Outages   OutageSource
	Fleet     *Fleet
}

func (o Options) withDefaults() Options {
	if o.Directory == nil {
		o.Directory = DefaultDirectory()
	}
	if o.Fleet == nil {
		o.Fleet = DefaultFleet()
	}
	if o.Outages == nil {
		o.Outages = StaticOutages(nil)
	}
	if o.Cache == nil {
		o.Cache = forecast.NewCache()
	}
	if o.Provider == nil {
		o.Provider = forecast.New(nil,
			&forecast.Fallback{Window: o.Planning.EWMAWindow},
			o.Cache,
			forecast.CallBudget{
				Timeout:     o.Forecast.Timeout.Duration(),
				MaxAttempts: o.Forecast.MaxAttempts,
			})
	}
	return o
}

// Sequence returns the eight planning stages in execution order.
func Sequence(opts Options) []pipeline.Stage {
	opts = opts.withDefaults()
	return []pipeline.Stage{
		DataProfilingStage(),
		FeatureEngineeringStage(opts.Planning),
		DemandForecastingStage(opts.Planning, opts.Forecast, opts.Provider),
		InventoryOptimizationStage(opts.Planning),
		SupplierProcurementStage(opts.Planning, opts.Directory, opts.Outages),
		LogisticsCapacityStage(opts.Planning, opts.Fleet),
		HumanReviewStage(),
		EvaluationStage(opts.Planning, opts.Cache),
	}
}

// Register adds the full planning sequence to a registry so pipelines can be
// assembled from configuration.
func Register(reg *config.Registry, opts Options) {
	for _, s := range Sequence(opts) {
		reg.Register(s)
	}
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdOf(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := meanOf(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func roundQty(q float64) float64 {
	if q <= 0 {
		return 0
	}
	return math.Round(q)
}

func ceilDiv(n, d int) int {
	if d <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
