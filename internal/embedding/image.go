package embedding

import (
	"context"
	"fmt"

	"github.com/example/go-textsim/internal/onnx"
)

// Graph input and output names of a CLIP-style image encoder.
const (
	ImageInputName    = "image"
	ImageFeaturesName = "image_features"
)

// ImageModel encodes a preprocessed CHW image into a feature vector.
type ImageModel interface {
	EmbedImage(ctx context.Context, pixels []float32, shape []int64) ([]float32, error)
	Close() error
}

// ONNXImageModel runs an image encoder graph through an onnx.GraphRunner.
type ONNXImageModel struct {
	runner onnx.GraphRunner
}

func NewONNXImageModel(runner onnx.GraphRunner) (*ONNXImageModel, error) {
	if runner == nil {
		return nil, fmt.Errorf("%w: nil graph runner", ErrModelUnavailable)
	}

	return &ONNXImageModel{runner: runner}, nil
}

func (m *ONNXImageModel) EmbedImage(ctx context.Context, pixels []float32, shape []int64) ([]float32, error) {
	in, err := onnx.NewTensor(pixels, shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	outputs, err := m.runner.Run(ctx, map[string]*onnx.Tensor{ImageInputName: in})
	if err != nil {
		return nil, fmt.Errorf("%s: run: %w", m.runner.Name(), err)
	}

	t, ok := outputs[ImageFeaturesName]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidOutput, ImageFeaturesName)
	}

	features, err := onnx.ExtractFloat32(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidOutput, ImageFeaturesName, err)
	}

	if len(features) == 0 {
		return nil, fmt.Errorf("%w: empty %s", ErrInvalidOutput, ImageFeaturesName)
	}

	return features, nil
}

func (m *ONNXImageModel) Close() error {
	m.runner.Close()
	return nil
}
