// Package model fetches the encoder assets and verifies that the configured
// graphs load and answer a smoke inference.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/example/go-textsim/internal/config"
	"github.com/example/go-textsim/internal/embedding"
	"github.com/example/go-textsim/internal/onnx"
	"github.com/example/go-textsim/internal/vocab"
)

// VerifyOptions configures Verify.
type VerifyOptions struct {
	Config config.Config
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// openBundle is replaced in tests to inject fake runners.
var openBundle = embedding.Open

// Verify checks that every declared manifest input can be materialised, then
// opens the encoders and runs one inference through each. It prints a PASS or
// FAIL line per graph.
func Verify(ctx context.Context, opts VerifyOptions) error {
	if opts.Config.Paths.ManifestPath == "" {
		return errors.New("manifest path is required")
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	sm, err := onnx.NewSessionManager(opts.Config.Paths.ManifestPath)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	for _, session := range sm.Sessions() {
		for _, input := range session.Inputs {
			if _, err := onnx.NewZeroTensor(input.DType, input.Shape); err != nil {
				return fmt.Errorf("session %q input %q invalid: %w", session.Name, input.Name, err)
			}
		}
	}

	bundle, err := openBundle(opts.Config, opts.Logger)
	if err != nil {
		return err
	}
	defer bundle.Close()

	var failures []string

	report := func(name string, err error) {
		if err != nil {
			fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", name, err)
			failures = append(failures, name)

			return
		}

		fmt.Fprintf(opts.Stdout, "PASS %s\n", name)
	}

	v := vocab.LoadOrDefault(opts.Config.Paths.VocabPath, opts.Logger)
	report(opts.Config.Model.TextGraph, smokeText(ctx, bundle.Text, v))

	if bundle.Image != nil {
		report(opts.Config.Model.ImageGraph, smokeImage(ctx, bundle.Image))
	}

	if len(failures) > 0 {
		return fmt.Errorf("verify failed for %d graph(s): %s", len(failures), strings.Join(failures, ", "))
	}

	return nil
}

// smokeText encodes the shortest valid sequence, [CLS] [SEP].
func smokeText(ctx context.Context, m embedding.Model, v *vocab.Vocabulary) error {
	out, err := m.Embed(ctx, embedding.Input{
		InputIDs:      []int64{v.StartID(), v.SeparatorID()},
		AttentionMask: []int64{1, 1},
		TokenTypeIDs:  []int64{0, 0},
	})
	if err != nil {
		return err
	}

	if len(out.Pooled) == 0 {
		return errors.New("empty sentence vector")
	}

	if out.HiddenShape != nil {
		if len(out.HiddenShape) != 3 || out.HiddenShape[0] != 1 || out.HiddenShape[1] != 2 {
			return fmt.Errorf("hidden state shape %v, want [1 2 H]", out.HiddenShape)
		}
	}

	return nil
}

// smokeImage encodes one black image in the encoder's input layout.
func smokeImage(ctx context.Context, m embedding.ImageModel) error {
	shape := []int64{1, 3, 224, 224}

	features, err := m.EmbedImage(ctx, make([]float32, 3*224*224), shape)
	if err != nil {
		return err
	}

	if len(features) == 0 {
		return errors.New("empty image features")
	}

	return nil
}
