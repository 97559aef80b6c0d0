package onnx

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// fakeRunner implements GraphRunner without an ORT session.
type fakeRunner struct {
	name   string
	closed bool
	fn     func(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
}

func (f *fakeRunner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	return f.fn(ctx, inputs)
}

func (f *fakeRunner) Name() string { return f.name }

func (f *fakeRunner) Close() { f.closed = true }

func TestNewEngineWithRunners_CopiesInputMap(t *testing.T) {
	called := false
	enc := &fakeRunner{
		name: "text_encoder",
		fn: func(_ context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
			called = true

			if _, ok := inputs["input_ids"]; !ok {
				t.Error("missing input_ids")
			}

			out, err := NewTensor([]float32{0.1, 0.2}, []int64{1, 2})
			if err != nil {
				t.Fatalf("NewTensor: %v", err)
			}

			return map[string]*Tensor{"pooler_output": out}, nil
		},
	}

	orig := map[string]GraphRunner{"text_encoder": enc}
	e := NewEngineWithRunners(orig)

	delete(orig, "text_encoder")

	r, ok := e.Graph("text_encoder")
	if !ok {
		t.Fatal("Graph(text_encoder) missing after caller mutated its map")
	}

	ids, _ := NewTensor([]int64{101, 102}, []int64{1, 2})

	_, err := r.Run(context.Background(), map[string]*Tensor{"input_ids": ids})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !called {
		t.Fatal("expected copied runner to be called")
	}
}

func TestEngineRunnerAndClose(t *testing.T) {
	spy := &fakeRunner{name: "spy"}
	native := &Runner{name: "native"}

	e := &Engine{
		runners: map[string]GraphRunner{
			"spy":    spy,
			"native": native,
		},
	}

	if !reflect.DeepEqual(e.names(), []string{"native", "spy"}) {
		t.Fatalf("Names() = %v", e.names())
	}

	if _, ok := e.runner("missing"); ok {
		t.Fatal("Runner(missing) should not exist")
	}

	if _, ok := e.runner("spy"); ok {
		t.Fatal("Runner(spy) should return false for non-*Runner concrete type")
	}

	got, ok := e.runner("native")
	if !ok || got.Name() != "native" {
		t.Fatalf("Runner(native) = %v, %v", got, ok)
	}

	e.Close()

	if !spy.closed {
		t.Fatal("expected spy runner to be closed")
	}

	if len(e.names()) != 0 {
		t.Fatalf("Names() after Close = %v; want empty", e.names())
	}
}

func TestNewEngineRejectsMissingManifest(t *testing.T) {
	_, err := NewEngine("/nonexistent/manifest.json", RunnerConfig{LibraryPath: "/fake"})
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestNewEngineRejectsUnknownGraph(t *testing.T) {
	manifestPath := writeManifest(t, t.TempDir(), encoderManifest, "bert.onnx", "clip.onnx")

	_, err := NewEngine(manifestPath, RunnerConfig{LibraryPath: "/fake"}, "audio_decoder")
	if !errors.Is(err, ErrGraphNotFound) {
		t.Fatalf("NewEngine error = %v; want ErrGraphNotFound", err)
	}
}

func TestNewEngineReportsRunnerFailure(t *testing.T) {
	manifestPath := writeManifest(t, t.TempDir(), encoderManifest, "bert.onnx", "clip.onnx")

	// The library path does not exist, so runner creation must fail cleanly.
	_, err := NewEngine(manifestPath, RunnerConfig{LibraryPath: "/nonexistent/libonnxruntime.so"}, "text_encoder")
	if err == nil {
		t.Fatal("expected runner creation error")
	}
}
