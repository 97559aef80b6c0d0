package main

import (
	"fmt"
	"log/slog"

	"github.com/example/go-textsim/internal/similarity"
	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "score <text-a> <text-b>",
		Short: "Print the cosine similarity of two texts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			e, err := openEngine(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer e.Close()

			res, scoreErr := e.scorer.ScoreDetailed(cmd.Context(), args[0], args[1])

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "%.6f\n", res.Score); err != nil {
				return err
			}

			if !explain {
				return nil
			}

			fmt.Fprintf(out, "sequence_len: %d\n", res.SequenceLen)
			fmt.Fprintf(out, "dimension: %d\n", res.Dimension)
			fmt.Fprintf(out, "duration: %s\n", res.Duration)

			if scoreErr != nil {
				fmt.Fprintf(out, "reason: %s (%v)\n", similarity.FailureReason(scoreErr), scoreErr)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "Print sequence length, vector size and failure reason")

	return cmd
}
