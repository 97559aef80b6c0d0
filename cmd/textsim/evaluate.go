package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/go-textsim/internal/evaluate"
	"github.com/spf13/cobra"
)

func newEvaluateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "evaluate [cases.json]",
		Short: "Score a labelled case file and report how many scores are reasonable",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path := cfg.Evaluate.CasesPath
			if len(args) == 1 {
				path = args[0]
			}

			if path == "" {
				return errors.New("no case file given; pass one or set evaluate.cases_path")
			}

			cases, err := evaluate.LoadCases(path)
			if err != nil {
				return err
			}

			e, err := openEngine(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := evaluate.Run(cmd.Context(), e.scorer, cases, evaluate.Options{
				Workers: cfg.Evaluate.Workers,
				Logger:  slog.Default(),
			})
			if err != nil {
				return err
			}

			if err := report.Write(cmd.OutOrStdout(), cfg.Evaluate.Format); err != nil {
				return err
			}

			if strict && !report.Passed() {
				return fmt.Errorf("%d of %d cases unreasonable", report.Unreasonable, report.Total)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any case is unreasonable")

	return cmd
}
