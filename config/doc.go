// Package config loads planning pipelines from YAML. A config names the
// pipeline, lists its stages in order, and carries the planning thresholds
// (service level, budget limit, horizon, and so on) the stages consume.
// Stage names resolve through a Registry so callers control which stage
// implementations are available.
package config
