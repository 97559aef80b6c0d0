package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/go-textsim/internal/embedding"
	"github.com/example/go-textsim/internal/icon"
)

// Attributes are the comparable properties of a UI widget.
type Attributes struct {
	Text         string `json:"text" yaml:"text"`
	ActivityName string `json:"activity_name" yaml:"activity_name"`
	ResourceID   string `json:"resource_id" yaml:"resource_id"`
	IconBase64   string `json:"icon_base64,omitempty" yaml:"icon_base64,omitempty"`
}

// Weights combine the per-field similarities.
type Weights struct {
	Text       float64 `json:"text"`
	ResourceID float64 `json:"resource_id"`
	Activity   float64 `json:"activity"`
	Icon       float64 `json:"icon"`
}

var (
	// WeightsWithIcon apply when both widgets carry an icon.
	WeightsWithIcon = Weights{Text: 0.35, ResourceID: 0.2, Activity: 0.1, Icon: 0.35}
	// WeightsWithoutIcon apply when at least one icon is missing.
	WeightsWithoutIcon = Weights{Text: 0.4, ResourceID: 0.2, Activity: 0.4, Icon: 0}
)

// Field scoring methods.
const (
	MethodEmpty    = "empty"
	MethodModel    = "model"
	MethodFallback = "fallback"
	MethodSkipped  = "skipped"
)

// FieldResult is the similarity of one attribute and how it was obtained.
type FieldResult struct {
	Score  float64 `json:"score"`
	Method string  `json:"method"`
	Error  string  `json:"error,omitempty"`
}

// AttributeResult is the weighted widget similarity with its breakdown.
type AttributeResult struct {
	Score      float64     `json:"score"`
	Text       FieldResult `json:"text"`
	ResourceID FieldResult `json:"resource_id"`
	Activity   FieldResult `json:"activity"`
	Icon       FieldResult `json:"icon"`
	Weights    Weights     `json:"weights"`
}

// AttributeScorer compares widgets field by field. Text-like fields use the
// text scorer and fall back to string heuristics when it fails; icons use an
// optional image encoder and score 0 when it is missing or fails.
type AttributeScorer struct {
	text   *Scorer
	images embedding.ImageModel
	logger *slog.Logger
}

// NewAttributeScorer builds an attribute scorer. images may be nil.
func NewAttributeScorer(text *Scorer, images embedding.ImageModel) *AttributeScorer {
	return &AttributeScorer{text: text, images: images, logger: text.logger}
}

// Compare returns the weighted similarity of a and b.
func (s *AttributeScorer) Compare(ctx context.Context, a, b Attributes) AttributeResult {
	res := AttributeResult{
		Text:       s.field(ctx, a.Text, b.Text, textFallback),
		ResourceID: s.field(ctx, a.ResourceID, b.ResourceID, containmentFallback),
		Activity:   s.field(ctx, a.ActivityName, b.ActivityName, exactFallback),
	}

	if a.IconBase64 != "" && b.IconBase64 != "" {
		res.Weights = WeightsWithIcon
		res.Icon = s.icons(ctx, a.IconBase64, b.IconBase64)
	} else {
		res.Weights = WeightsWithoutIcon
		res.Icon = FieldResult{Method: MethodSkipped}
	}

	w := res.Weights
	res.Score = w.Text*res.Text.Score +
		w.ResourceID*res.ResourceID.Score +
		w.Activity*res.Activity.Score +
		w.Icon*res.Icon.Score

	s.logger.LogAttrs(ctx, slog.LevelDebug, "widget similarity",
		slog.Float64("score", res.Score),
		slog.Float64("text", res.Text.Score),
		slog.Float64("resource_id", res.ResourceID.Score),
		slog.Float64("activity", res.Activity.Score),
		slog.Float64("icon", res.Icon.Score),
	)

	return res
}

func (s *AttributeScorer) field(ctx context.Context, a, b string, fallback func(a, b string) float64) FieldResult {
	switch {
	case a == "" && b == "":
		return FieldResult{Score: 1, Method: MethodEmpty}
	case a == "" || b == "":
		return FieldResult{Score: 0, Method: MethodEmpty}
	}

	res, err := s.text.ScoreDetailed(ctx, a, b)
	if err != nil {
		return FieldResult{Score: fallback(a, b), Method: MethodFallback, Error: err.Error()}
	}

	return FieldResult{Score: res.Score, Method: MethodModel}
}

func (s *AttributeScorer) icons(ctx context.Context, a, b string) FieldResult {
	start := time.Now()

	score, err := s.iconCosine(ctx, a, b)
	s.text.metrics.record(ctx, "icon", time.Since(start), err)

	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "icon similarity failed",
			slog.String("error", err.Error()))

		return FieldResult{Score: 0, Method: MethodFallback, Error: err.Error()}
	}

	return FieldResult{Score: score, Method: MethodModel}
}

func (s *AttributeScorer) iconCosine(ctx context.Context, a, b string) (float64, error) {
	if s.images == nil {
		return 0, ErrModelUnavailable
	}

	va, err := s.embedIcon(ctx, a)
	if err != nil {
		return 0, err
	}

	vb, err := s.embedIcon(ctx, b)
	if err != nil {
		return 0, err
	}

	return Cosine(va, vb)
}

func (s *AttributeScorer) embedIcon(ctx context.Context, encoded string) ([]float32, error) {
	t, err := icon.Decode(encoded)
	if err != nil {
		return nil, err
	}

	v, err := s.images.EmbedImage(ctx, t.Pixels, t.Shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelInvocation, err)
	}

	return v, nil
}

// textFallback scores equal strings 1, containment 0.8 and otherwise the
// share of code points that agree position by position.
func textFallback(a, b string) float64 {
	if v, ok := stringMatch(a, b); ok {
		return v
	}

	ra, rb := []rune(a), []rune(b)

	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}

	same := 0

	for i := range min(len(ra), len(rb)) {
		if ra[i] == rb[i] {
			same++
		}
	}

	return float64(same) / float64(longest)
}

func containmentFallback(a, b string) float64 {
	v, _ := stringMatch(a, b)
	return v
}

func exactFallback(a, b string) float64 {
	if a == b {
		return 1
	}

	return 0
}

func stringMatch(a, b string) (float64, bool) {
	switch {
	case a == b:
		return 1, true
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 0.8, true
	default:
		return 0, false
	}
}
