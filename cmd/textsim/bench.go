package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/go-textsim/internal/bench"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		textA     string
		textB     string
		runs      int
		format    string
		threshold time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark similarity scoring latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if strings.TrimSpace(textA) == "" || strings.TrimSpace(textB) == "" {
				return fmt.Errorf("--a and --b are required for bench")
			}
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			e, err := openEngine(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := bench.Run(cmd.Context(), e.scorer, textA, textB, runs)
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results, true))

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				if err := bench.FormatJSON(results, stats, out); err != nil {
					return err
				}
			default:
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckLatencyThreshold(stats.Mean, threshold)
		},
	}

	cmd.Flags().StringVar(&textA, "a", "", "First text of the compared pair (required)")
	cmd.Flags().StringVar(&textB, "b", "", "Second text of the compared pair (required)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of comparisons")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().DurationVar(&threshold, "max-latency", 0, "Exit non-zero if mean warm latency exceeds this value (0 = disabled)")

	return cmd
}
