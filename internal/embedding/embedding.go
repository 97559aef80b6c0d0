// Package embedding turns assembled token sequences into sentence vectors by
// running an encoder graph. The forward pass itself is opaque; this package
// only builds the input tensors, checks the output shapes and pools.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-textsim/internal/config"
	"github.com/example/go-textsim/internal/onnx"
)

// Graph input and output names of a BERT-style text encoder.
const (
	InputIDsName      = "input_ids"
	AttentionMaskName = "attention_mask"
	TokenTypeIDsName  = "token_type_ids"
	HiddenStateName   = "last_hidden_state"
	PooledOutputName  = "pooler_output"
)

var (
	// ErrModelUnavailable is returned when no encoder could be loaded.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrInvalidInput is returned for empty or misaligned input sequences.
	ErrInvalidInput = errors.New("invalid embedding input")
	// ErrInvalidOutput is returned when the graph output has an unexpected shape.
	ErrInvalidOutput = errors.New("invalid embedding output")
)

// Input is one token sequence with its mask and segment ids (batch size 1).
type Input struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Output is the encoder result for one sequence. HiddenState is row-major
// with shape HiddenShape ([1, L, H]); it is empty when the graph does not
// expose it.
type Output struct {
	HiddenState []float32
	HiddenShape []int64
	Pooled      []float32
}

// Model is the text encoder capability used by the scorer.
type Model interface {
	Embed(ctx context.Context, in Input) (Output, error)
	Close() error
}

// ONNXConfig configures an ONNXModel.
type ONNXConfig struct {
	// Pooling selects the sentence vector: pooler, cls or mean.
	Pooling string
}

// ONNXModel runs a text encoder graph through an onnx.GraphRunner.
type ONNXModel struct {
	runner  onnx.GraphRunner
	pooling string
}

// NewONNXModel wraps runner. The runner is closed by Close.
func NewONNXModel(runner onnx.GraphRunner, cfg ONNXConfig) (*ONNXModel, error) {
	if runner == nil {
		return nil, fmt.Errorf("%w: nil graph runner", ErrModelUnavailable)
	}

	pooling, err := config.NormalizePooling(cfg.Pooling)
	if err != nil {
		return nil, err
	}

	return &ONNXModel{runner: runner, pooling: pooling}, nil
}

// Pooling returns the normalized pooling mode.
func (m *ONNXModel) Pooling() string {
	return m.pooling
}

func (m *ONNXModel) Embed(ctx context.Context, in Input) (Output, error) {
	n := len(in.InputIDs)
	if n == 0 {
		return Output{}, fmt.Errorf("%w: empty input_ids", ErrInvalidInput)
	}

	if len(in.AttentionMask) != n {
		return Output{}, fmt.Errorf("%w: attention_mask length %d, input_ids length %d",
			ErrInvalidInput, len(in.AttentionMask), n)
	}

	segments := in.TokenTypeIDs
	if segments == nil {
		segments = make([]int64, n)
	}

	if len(segments) != n {
		return Output{}, fmt.Errorf("%w: token_type_ids length %d, input_ids length %d",
			ErrInvalidInput, len(segments), n)
	}

	shape := []int64{1, int64(n)}
	inputs := make(map[string]*onnx.Tensor, 3)

	for name, data := range map[string][]int64{
		InputIDsName:      in.InputIDs,
		AttentionMaskName: in.AttentionMask,
		TokenTypeIDsName:  segments,
	} {
		t, err := onnx.NewTensor(data, shape)
		if err != nil {
			return Output{}, fmt.Errorf("%s tensor: %w", name, err)
		}

		inputs[name] = t
	}

	outputs, err := m.runner.Run(ctx, inputs)
	if err != nil {
		return Output{}, fmt.Errorf("%s: run: %w", m.runner.Name(), err)
	}

	return m.decode(outputs, n, in.AttentionMask)
}

func (m *ONNXModel) decode(outputs map[string]*onnx.Tensor, seqLen int, mask []int64) (Output, error) {
	var out Output

	hidden := 0

	if t, ok := outputs[HiddenStateName]; ok {
		shape := t.Shape()
		if len(shape) != 3 || shape[0] != 1 || shape[1] != int64(seqLen) || shape[2] < 1 {
			return Output{}, fmt.Errorf("%w: %s shape %v, want [1 %d H]", ErrInvalidOutput, HiddenStateName, shape, seqLen)
		}

		data, err := onnx.ExtractFloat32(t)
		if err != nil {
			return Output{}, fmt.Errorf("%w: %s: %w", ErrInvalidOutput, HiddenStateName, err)
		}

		out.HiddenState = data
		out.HiddenShape = shape
		hidden = int(shape[2])
	}

	if t, ok := outputs[PooledOutputName]; ok && m.pooling == config.PoolingPooler {
		shape := t.Shape()
		if len(shape) != 2 || shape[0] != 1 || shape[1] < 1 {
			return Output{}, fmt.Errorf("%w: %s shape %v, want [1 H]", ErrInvalidOutput, PooledOutputName, shape)
		}

		if hidden > 0 && shape[1] != int64(hidden) {
			return Output{}, fmt.Errorf("%w: %s width %d, hidden width %d", ErrInvalidOutput, PooledOutputName, shape[1], hidden)
		}

		data, err := onnx.ExtractFloat32(t)
		if err != nil {
			return Output{}, fmt.Errorf("%w: %s: %w", ErrInvalidOutput, PooledOutputName, err)
		}

		out.Pooled = data

		return out, nil
	}

	if hidden == 0 {
		return Output{}, fmt.Errorf("%w: graph returned neither %s nor %s", ErrInvalidOutput, PooledOutputName, HiddenStateName)
	}

	if m.pooling == config.PoolingMean {
		out.Pooled = MeanPool(out.HiddenState, seqLen, hidden, mask)
	} else {
		out.Pooled = CLSPool(out.HiddenState, hidden)
	}

	return out, nil
}

func (m *ONNXModel) Close() error {
	m.runner.Close()
	return nil
}

// CLSPool returns the hidden vector of the first position.
func CLSPool(hidden []float32, width int) []float32 {
	return append([]float32(nil), hidden[:width]...)
}

// MeanPool averages the hidden vectors of positions whose mask is non-zero.
// A mask with no active position yields a zero vector.
func MeanPool(hidden []float32, seqLen, width int, mask []int64) []float32 {
	out := make([]float32, width)
	sum := make([]float64, width)
	count := 0

	for pos := range seqLen {
		if pos < len(mask) && mask[pos] == 0 {
			continue
		}

		row := hidden[pos*width : (pos+1)*width]
		for i, v := range row {
			sum[i] += float64(v)
		}

		count++
	}

	if count == 0 {
		return out
	}

	for i := range out {
		out[i] = float32(sum[i] / float64(count))
	}

	return out
}
