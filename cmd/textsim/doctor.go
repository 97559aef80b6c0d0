package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-textsim/internal/config"
	"github.com/example/go-textsim/internal/doctor"
	"github.com/example/go-textsim/internal/model"
	"github.com/example/go-textsim/internal/onnx"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var tokenizerOnly bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime, vocabulary and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			dcfg := doctor.Config{
				Runtime: func() (onnx.RuntimeInfo, error) {
					return onnx.DetectRuntime(cfg.Runtime)
				},
				SkipRuntime:    tokenizerOnly,
				APIVersion:     cfg.Runtime.ORTAPIVersion,
				VocabPath:      cfg.Paths.VocabPath,
				Graphs:         []string{cfg.Model.TextGraph},
				OptionalGraphs: []string{cfg.Model.ImageGraph},
			}
			if !tokenizerOnly {
				dcfg.ManifestPath = cfg.Paths.ManifestPath
			}

			result := doctor.Run(dcfg, out)

			if tokenizerOnly || result.Failed() {
				fmt.Fprintf(out, "%s model verify: skipped\n", doctor.PassMark)
			} else {
				verifyModel(cmd, cfg, &result)
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&tokenizerOnly, "tokenizer-only", false, "Check only the vocabulary")

	return cmd
}

func verifyModel(cmd *cobra.Command, cfg config.Config, result *doctor.Result) {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfg.Paths.ManifestPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "%s model verify: skipped (no manifest at %s)\n", doctor.PassMark, cfg.Paths.ManifestPath)
		return
	}

	err := model.Verify(cmd.Context(), model.VerifyOptions{
		Config: cfg,
		Logger: slog.Default(),
		Stdout: out,
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		result.AddFailure(fmt.Sprintf("model verify: %v", err))
		fmt.Fprintf(out, "%s model verify: %v\n", doctor.FailMark, err)

		return
	}

	fmt.Fprintf(out, "%s model verify: ok\n", doctor.PassMark)
}
