package evaluate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/go-textsim/internal/similarity"
)

// Scorer is the part of similarity.Scorer the runner needs.
type Scorer interface {
	ScoreDetailed(ctx context.Context, textA, textB string) (similarity.Result, error)
}

// Options configures Run.
type Options struct {
	// Workers bounds concurrent comparisons. Values below 1 mean one.
	Workers int
	Logger  *slog.Logger
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Case       Case          `json:"case"`
	Label      string        `json:"label,omitempty"`
	Score      float64       `json:"score"`
	Reasonable bool          `json:"reasonable"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Run scores every case and returns the report in case order. Scoring
// failures are recorded per case; only context cancellation aborts the run.
func Run(ctx context.Context, scorer Scorer, cases []Case, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := max(opts.Workers, 1)

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]CaseResult, len(cases)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			report.Results[i] = runCase(gctx, scorer, c)

			logger.Debug("case scored",
				slog.String("run_id", report.RunID),
				slog.String("case", c.Name),
				slog.Float64("score", report.Results[i].Score),
				slog.Bool("reasonable", report.Results[i].Reasonable),
			)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Cases already in flight record a cancellation as a scoring failure.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Duration = time.Since(report.StartedAt)
	report.summarize()

	logger.Info("evaluation finished",
		slog.String("run_id", report.RunID),
		slog.Int("total", report.Total),
		slog.Int("reasonable", report.Reasonable),
		slog.Duration("duration", report.Duration),
	)

	return report, nil
}

func runCase(ctx context.Context, scorer Scorer, c Case) CaseResult {
	res, err := scorer.ScoreDetailed(ctx, c.Activity1, c.Activity2)

	out := CaseResult{
		Case:     c,
		Label:    c.EffectiveLabel(),
		Score:    res.Score,
		Duration: res.Duration,
	}

	if err != nil {
		out.Score = 0
		out.Error = err.Error()
	}

	out.Reasonable = Classify(out.Label, out.Score)

	return out
}
