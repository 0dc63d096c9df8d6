package config

import (
	"fmt"
	"sort"

	"github.com/dcshock/planpipe/pipeline"
)

// Registry maps stage names to stage implementations so pipelines can be
// assembled from configuration.
type Registry struct {
	stages map[string]pipeline.Stage
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]pipeline.Stage)}
}

// Register adds a stage under its name. Registering the same name twice
// replaces the earlier entry.
func (r *Registry) Register(s pipeline.Stage) {
	r.stages[s.Name] = s
}

// Lookup returns the stage registered under name.
func (r *Registry) Lookup(name string) (pipeline.Stage, bool) {
	s, ok := r.stages[name]
	return s, ok
}

// Names returns the registered stage names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build assembles a pipeline from the config's stage list, resolving each
// name through the registry and applying per-stage timeouts.
func Build(cfg PipelineConfig, reg *Registry) (*pipeline.Pipeline, error) {
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("pipeline %q: no stages configured", cfg.Name)
	}
	stages := make([]pipeline.Stage, 0, len(cfg.Stages))
	for i, ref := range cfg.Stages {
		s, ok := reg.Lookup(ref.Name)
		if !ok {
			return nil, fmt.Errorf("pipeline %q: stage %d: unknown stage %q", cfg.Name, i, ref.Name)
		}
		if ref.Timeout > 0 {
			s = pipeline.WithTimeout(s, ref.Timeout.Duration())
		}
		stages = append(stages, s)
	}
	return &pipeline.Pipeline{Name: cfg.Name, Stages: stages}, nil
}
