// Package bench provides benchmarking primitives for the textsim bench command.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/example/go-textsim/internal/similarity"
)

// Scorer is the comparison being timed.
type Scorer interface {
	ScoreDetailed(ctx context.Context, textA, textB string) (similarity.Result, error)
}

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and output of a single comparison.
type RunResult struct {
	Index       int
	Cold        bool // true for the first run, which pays for graph warm-up
	Duration    time.Duration
	SequenceLen int
	Score       float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	P95  time.Duration
}

// ComputeStats calculates min, max, mean and the 95th percentile
// (nearest rank) over durations.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	rank := (95*len(sorted) + 99) / 100

	return Stats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: sum / time.Duration(len(sorted)),
		P95:  sorted[rank-1],
	}
}

// Run compares textA and textB runs times in sequence. A failed comparison
// aborts the benchmark: timings of the zero-score path are meaningless.
func Run(ctx context.Context, scorer Scorer, textA, textB string, runs int) ([]RunResult, error) {
	if runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", runs)
	}

	results := make([]RunResult, 0, runs)

	for i := range runs {
		res, err := scorer.ScoreDetailed(ctx, textA, textB)
		if err != nil {
			return nil, fmt.Errorf("run %d failed: %w", i+1, err)
		}

		results = append(results, RunResult{
			Index:       i,
			Cold:        i == 0,
			Duration:    res.Duration,
			SequenceLen: res.SequenceLen,
			Score:       res.Score,
		})
	}

	return results, nil
}

// Durations extracts the per-run durations, skipping the cold run when warm
// is true and more than one run exists.
func Durations(runs []RunResult, warm bool) []time.Duration {
	out := make([]time.Duration, 0, len(runs))

	for _, r := range runs {
		if warm && r.Cold && len(runs) > 1 {
			continue
		}

		out = append(out, r.Duration)
	}

	return out
}

// ---------------------------------------------------------------------------
// Latency threshold gate
// ---------------------------------------------------------------------------

// CheckLatencyThreshold returns an error if mean exceeds threshold.
// A threshold of 0 disables the gate.
func CheckLatencyThreshold(mean, threshold time.Duration) error {
	if threshold <= 0 {
		return nil
	}
	if mean > threshold {
		return fmt.Errorf("mean latency %s exceeds threshold %s", mean, threshold)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %6s  %9s\n", "Run", "Cold", "MS", "SeqLen", "Score")
	fmt.Fprintln(sb, strings.Repeat("-", 43))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.2f  %6d  %9.6f\n", r.Index+1, cold, ms(r.Duration), r.SequenceLen, r.Score)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 43))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.2f  (min)\n", "", "", ms(stats.Min))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.2f  (mean)\n", "", "", ms(stats.Mean))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.2f  (p95)\n", "", "", ms(stats.P95))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.2f  (max)\n", "", "", ms(stats.Max))

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index       int     `json:"index"`
	Cold        bool    `json:"cold"`
	DurationMS  float64 `json:"duration_ms"`
	SequenceLen int     `json:"sequence_len"`
	Score       float64 `json:"score"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	P95MS  float64 `json:"p95_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) error {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:  ms(stats.Min),
			MeanMS: ms(stats.Mean),
			P95MS:  ms(stats.P95),
			MaxMS:  ms(stats.Max),
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:       r.Index,
			Cold:        r.Cold,
			DurationMS:  ms(r.Duration),
			SequenceLen: r.SequenceLen,
			Score:       r.Score,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jr)
}
