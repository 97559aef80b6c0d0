//go:build windows || (js && wasm)

package onnx

import (
	"context"
	"fmt"
	"runtime"
)

// Runner is unavailable on this platform. Use NewEngineWithRunners with a
// custom GraphRunner instead.
type Runner struct {
	name string
	meta Session
}

// NewRunner always returns an error on this platform.
func NewRunner(meta Session, _ RunnerConfig) (*Runner, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable on %s for graph %q", runtime.GOOS, meta.Name)
}

// Run always returns an error on this platform.
func (r *Runner) Run(_ context.Context, _ map[string]*Tensor) (map[string]*Tensor, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable on %s for graph %q", runtime.GOOS, r.name)
}

// Close is a no-op on this platform.
func (r *Runner) Close() {}

// Name returns the graph name.
func (r *Runner) Name() string {
	return r.name
}

// Session returns the manifest metadata.
func (r *Runner) Session() Session {
	return r.meta
}
