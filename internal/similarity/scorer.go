// Package similarity scores pairs of texts by the cosine of their pooled
// sentence embeddings.
//
// Score never fails: every failure mode (empty text, missing model, model
// error, degenerate vector) collapses to 0.0 and is logged and counted.
// ScoreDetailed exposes the same computation with the typed error.
package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/example/go-textsim/internal/embedding"
	"github.com/example/go-textsim/internal/tokenizer"
)

// Result is the outcome of one comparison.
type Result struct {
	Score       float64
	SequenceLen int
	Dimension   int
	Duration    time.Duration
}

// Scorer compares texts with an injected embedding model. It holds no
// per-call state and is safe for concurrent use when the model is.
type Scorer struct {
	assembler *tokenizer.Assembler
	model     embedding.Model
	logger    *slog.Logger
	metrics   *scoreMetrics
}

// Option configures a Scorer.
type Option func(*scorerOptions)

type scorerOptions struct {
	logger *slog.Logger
	meter  metric.Meter
}

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *scorerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeter sets the OpenTelemetry meter; the global meter is used otherwise.
func WithMeter(m metric.Meter) Option {
	return func(o *scorerOptions) {
		o.meter = m
	}
}

// NewScorer builds a scorer. A nil model is allowed: every comparison then
// scores 0.0 with ErrModelUnavailable.
func NewScorer(assembler *tokenizer.Assembler, model embedding.Model, opts ...Option) *Scorer {
	o := scorerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Scorer{
		assembler: assembler,
		model:     model,
		logger:    o.logger,
		metrics:   newScoreMetrics(o.meter),
	}
}

// Available reports whether a model is attached.
func (s *Scorer) Available() bool {
	return s.model != nil
}

// Assembler returns the sequence assembler the scorer tokenizes with.
func (s *Scorer) Assembler() *tokenizer.Assembler {
	return s.assembler
}

// Score returns the cosine similarity of textA and textB, or 0.0 on any failure.
func (s *Scorer) Score(ctx context.Context, textA, textB string) float64 {
	res, err := s.ScoreDetailed(ctx, textA, textB)
	if err != nil {
		return 0
	}

	return res.Score
}

// ScoreDetailed is Score with the failure returned. On error the result
// still carries a zero score.
func (s *Scorer) ScoreDetailed(ctx context.Context, textA, textB string) (Result, error) {
	start := time.Now()

	res, err := s.compare(ctx, textA, textB)
	res.Duration = time.Since(start)

	s.metrics.record(ctx, "text", res.Duration, err)

	if err != nil {
		res.Score = 0
		s.logFailure(ctx, err, len(textA), len(textB))
	}

	return res, err
}

func (s *Scorer) compare(ctx context.Context, textA, textB string) (Result, error) {
	if textA == "" || textB == "" {
		return Result{}, ErrEmptyText
	}

	if s.model == nil {
		return Result{}, ErrModelUnavailable
	}

	pair := s.assembler.Assemble(textA, textB)
	res := Result{SequenceLen: pair.Len()}

	va, err := s.embed(ctx, pair.IDsA, pair.MaskA, pair.SegmentIDs)
	if err != nil {
		return res, err
	}

	vb, err := s.embed(ctx, pair.IDsB, pair.MaskB, pair.SegmentIDs)
	if err != nil {
		return res, err
	}

	res.Dimension = len(va)

	res.Score, err = Cosine(va, vb)
	if err != nil {
		return res, err
	}

	return res, nil
}

// embed runs one model call. Panics raised by the model binding are turned
// into ErrModelInvocation like any other model error.
func (s *Scorer) embed(ctx context.Context, ids, mask, segments []int64) (vec []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vec = nil
			err = fmt.Errorf("%w: panic: %v", ErrModelInvocation, r)
		}
	}()

	out, err := s.model.Embed(ctx, embedding.Input{
		InputIDs:      ids,
		AttentionMask: mask,
		TokenTypeIDs:  segments,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelInvocation, err)
	}

	return out.Pooled, nil
}

func (s *Scorer) logFailure(ctx context.Context, err error, lenA, lenB int) {
	level := slog.LevelWarn
	if FailureReason(err) == "empty_text" {
		level = slog.LevelDebug
	}

	s.logger.LogAttrs(ctx, level, "similarity collapsed to zero",
		slog.String("reason", FailureReason(err)),
		slog.String("error", err.Error()),
		slog.Int("text_a_bytes", lenA),
		slog.Int("text_b_bytes", lenB),
	)
}

// Cosine returns dot(a,b) / (|a|·|b|) accumulated in float64 and clamped to
// [-1, 1]. Vectors must have equal, non-zero length and non-zero norms.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDegenerateVector)
	}

	var dot, normA, normB float64

	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero norm", ErrDegenerateVector)
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(cos) || math.IsInf(cos, 0) {
		return 0, fmt.Errorf("%w: non-finite cosine", ErrDegenerateVector)
	}

	return max(-1, min(1, cos)), nil
}
