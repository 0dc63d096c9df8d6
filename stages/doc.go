// Package stages implements the concrete planning stages: data profiling,
// feature engineering, demand forecasting, inventory optimization, supplier
// procurement, logistics capacity, human review, and evaluation. Each stage
// writes only its own output fields on the run state and absorbs recoverable
// conditions (forecast degradation, supplier outages, budget and capacity
// shortfalls) into alerts and escalations so the run always produces a
// reviewable plan. Only structural data errors abort a run.
package stages
