package onnx

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// DefaultAPIVersion is the ORT C API version requested when none is configured.
const DefaultAPIVersion = 23

// RunnerConfig holds ORT library settings for creating runners.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// GraphRunner is the minimal contract for executing one named graph.
// *Runner implements it; tests and alternate runtimes provide their own.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// Engine owns one runner per loaded manifest graph.
type Engine struct {
	runners map[string]GraphRunner
}

// NewEngine reads the manifest and opens a runner for each named graph, or
// for every graph when names is empty.
func NewEngine(manifestPath string, cfg RunnerConfig, names ...string) (*Engine, error) {
	sm, err := NewSessionManager(manifestPath)
	if err != nil {
		return nil, err
	}

	sessions := sm.Sessions()
	if len(names) > 0 {
		sessions = sessions[:0]

		for _, name := range names {
			s, err := sm.Require(name)
			if err != nil {
				return nil, err
			}

			sessions = append(sessions, s)
		}
	}

	e := &Engine{runners: make(map[string]GraphRunner, len(sessions))}

	for _, s := range sessions {
		r, err := NewRunner(s, cfg)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("create runner %q: %w", s.Name, err)
		}

		e.runners[s.Name] = r
	}

	return e, nil
}

// NewEngineWithRunners builds an Engine from externally provided graph runners.
func NewEngineWithRunners(runners map[string]GraphRunner) *Engine {
	internal := make(map[string]GraphRunner, len(runners))
	maps.Copy(internal, runners)

	return &Engine{runners: internal}
}

// Graph returns the runner for name.
func (e *Engine) Graph(name string) (GraphRunner, bool) {
	r, ok := e.runners[name]
	return r, ok
}

// runner returns the native runner for name; runners injected through
// NewEngineWithRunners are not returned.
func (e *Engine) runner(name string) (*Runner, bool) {
	r, ok := e.runners[name].(*Runner)
	return r, ok
}

// names lists the loaded graph names in sorted order.
func (e *Engine) names() []string {
	return slices.Sorted(maps.Keys(e.runners))
}

// Close releases every runner.
func (e *Engine) Close() {
	for name, r := range e.runners {
		r.Close()
		delete(e.runners, name)
	}
}
