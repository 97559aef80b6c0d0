package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-textsim/internal/model"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model acquisition and verification commands",
	}

	cmd.AddCommand(newModelDownloadCmd())
	cmd.AddCommand(newModelVerifyCmd())
	return cmd
}

func newModelDownloadCmd() *cobra.Command {
	var (
		hfRepo     string
		revision   string
		outDir     string
		hfToken    string
		imageGraph string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the vocabulary and ONNX encoder from Hugging Face",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if hfToken == "" {
				hfToken = os.Getenv("HF_TOKEN")
			}

			assets := model.DefaultAssets(hfRepo, revision).WithImageEncoder(imageGraph)

			res, err := model.Download(cmd.Context(), model.DownloadOptions{
				Assets:  assets,
				OutDir:  outDir,
				HFToken: hfToken,
				Stdout:  cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("model download failed: %w", err)
			}

			slog.Info("model assets ready",
				slog.String("vocab", res.VocabPath),
				slog.String("manifest", res.ManifestPath),
			)

			return nil
		},
	}

	cmd.Flags().StringVar(&hfRepo, "hf-repo", model.DefaultRepo, "Hugging Face model repository")
	cmd.Flags().StringVar(&revision, "revision", model.DefaultRevision, "Repository revision (branch, tag or commit)")
	cmd.Flags().StringVar(&outDir, "out-dir", "models", "Directory where model files are stored")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")
	cmd.Flags().StringVar(&imageGraph, "image-encoder", "", "Optional repository path of an icon encoder graph")

	return cmd
}

func newModelVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run smoke inference through the configured encoders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			err = model.Verify(cmd.Context(), model.VerifyOptions{
				Config: cfg,
				Logger: slog.Default(),
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			return nil
		},
	}
}
