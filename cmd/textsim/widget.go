package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-textsim/internal/similarity"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newWidgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "widget <a.yaml> <b.yaml>",
		Short: "Compare two widgets by text, resource id, activity and icon",
		Long: "Each file holds one widget as YAML or JSON with the keys text, " +
			"activity_name, resource_id and icon_base64. The weighted score and " +
			"per-field breakdown are printed as JSON.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			a, err := readAttributes(args[0])
			if err != nil {
				return err
			}

			b, err := readAttributes(args[1])
			if err != nil {
				return err
			}

			e, err := openEngine(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer e.Close()

			res := e.widgets.Compare(cmd.Context(), a, b)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(res)
		},
	}

	return cmd
}

func readAttributes(path string) (similarity.Attributes, error) {
	var a similarity.Attributes

	data, err := os.ReadFile(path)
	if err != nil {
		return a, fmt.Errorf("read widget: %w", err)
	}

	// YAML is a superset of JSON, so one decoder serves both.
	if err := yaml.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("decode widget %s: %w", path, err)
	}

	return a, nil
}
