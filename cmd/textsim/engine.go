package main

import (
	"log/slog"

	"github.com/example/go-textsim/internal/config"
	"github.com/example/go-textsim/internal/embedding"
	"github.com/example/go-textsim/internal/similarity"
	"github.com/example/go-textsim/internal/tokenizer"
	"github.com/example/go-textsim/internal/vocab"
)

// openBundle is replaced in tests.
var openBundle = embedding.Open

// engine is the scoring stack shared by score, widget, evaluate and serve.
type engine struct {
	assembler *tokenizer.Assembler
	scorer    *similarity.Scorer
	widgets   *similarity.AttributeScorer
	bundle    *embedding.Bundle
}

func newAssembler(cfg config.Config, logger *slog.Logger) *tokenizer.Assembler {
	v := vocab.LoadOrDefault(cfg.Paths.VocabPath, logger)
	logger.Debug("vocabulary loaded", "source", v.Source(), "size", v.Size())

	return tokenizer.NewAssembler(v, tokenizer.WithMaxLen(cfg.Tokenizer.MaxLen))
}

// openEngine loads the vocabulary and encoders. A missing runtime or graph is
// not an error: the engine then scores every pair 0.0.
func openEngine(cfg config.Config, logger *slog.Logger) (*engine, error) {
	e := &engine{assembler: newAssembler(cfg, logger)}

	var (
		text   embedding.Model
		images embedding.ImageModel
	)

	bundle, err := openBundle(cfg, logger)
	switch {
	case err == nil:
		e.bundle = bundle
		text = bundle.Text
		if bundle.Image != nil {
			images = bundle.Image
		}
	case embedding.IsUnavailable(err):
		logger.Warn("embedding model unavailable, similarity scores will be 0",
			slog.String("error", err.Error()),
		)
	default:
		return nil, err
	}

	e.scorer = similarity.NewScorer(e.assembler, text, similarity.WithLogger(logger))
	e.widgets = similarity.NewAttributeScorer(e.scorer, images)

	return e, nil
}

func (e *engine) Close() error {
	return e.bundle.Close()
}
