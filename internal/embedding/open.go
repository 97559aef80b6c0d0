package embedding

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/go-textsim/internal/config"
	"github.com/example/go-textsim/internal/onnx"
)

// Bundle holds the encoders opened from one manifest. Image is nil when the
// manifest has no image encoder graph.
type Bundle struct {
	Text    *ONNXModel
	Image   *ONNXImageModel
	Runtime onnx.RuntimeInfo

	engine *onnx.Engine
}

// Open detects the ONNX Runtime, reads the manifest and opens the text
// encoder plus the optional image encoder. All failures wrap ErrModelUnavailable.
func Open(cfg config.Config, logger *slog.Logger) (*Bundle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := onnx.Bootstrap(cfg.Runtime)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	sm, err := onnx.NewSessionManager(cfg.Paths.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	names := []string{cfg.Model.TextGraph}
	if _, ok := sm.Session(cfg.Model.ImageGraph); ok && cfg.Model.ImageGraph != "" {
		names = append(names, cfg.Model.ImageGraph)
	}

	engine, err := onnx.NewEngine(sm.Path(), info.RunnerConfig(), names...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	b, err := bundleFromEngine(engine, cfg.Model)
	if err != nil {
		engine.Close()
		return nil, err
	}

	b.Runtime = info

	logger.Info("embedding model loaded",
		slog.String("manifest", sm.Path()),
		slog.String("ort_library", info.LibraryPath),
		slog.String("ort_version", info.Version),
		slog.String("pooling", b.Text.Pooling()),
		slog.Bool("image_encoder", b.Image != nil),
	)

	return b, nil
}

// NewBundle builds encoders from an engine with injected runners.
func NewBundle(engine *onnx.Engine, cfg config.ModelConfig) (*Bundle, error) {
	return bundleFromEngine(engine, cfg)
}

func bundleFromEngine(engine *onnx.Engine, cfg config.ModelConfig) (*Bundle, error) {
	runner, ok := engine.Graph(cfg.TextGraph)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrModelUnavailable, onnx.ErrGraphNotFound, cfg.TextGraph)
	}

	text, err := NewONNXModel(runner, ONNXConfig{Pooling: cfg.Pooling})
	if err != nil {
		return nil, err
	}

	b := &Bundle{Text: text, engine: engine}

	if r, ok := engine.Graph(cfg.ImageGraph); ok {
		b.Image, err = NewONNXImageModel(r)
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Close releases every runner of the bundle.
func (b *Bundle) Close() error {
	if b == nil || b.engine == nil {
		return nil
	}

	b.engine.Close()

	return nil
}

// IsUnavailable reports whether err means no model could be loaded.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}
