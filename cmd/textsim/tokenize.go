package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

func newTokenizeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tokenize <text>",
		Short: "Show the WordPiece tokens, ids and mask of a text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			enc := newAssembler(cfg, slog.Default()).Encode(args[0])
			out := cmd.OutOrStdout()

			if asJSON {
				return json.NewEncoder(out).Encode(map[string]any{
					"tokens": enc.Tokens,
					"ids":    enc.IDs,
					"mask":   enc.Mask,
				})
			}

			ids := make([]string, len(enc.IDs))
			for i, id := range enc.IDs {
				ids[i] = fmt.Sprint(id)
			}

			fmt.Fprintf(out, "tokens: %s\n", strings.Join(enc.Tokens, " "))
			fmt.Fprintf(out, "ids:    %s\n", strings.Join(ids, " "))
			fmt.Fprintf(out, "length: %d\n", enc.Len())

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the encoding as JSON")

	return cmd
}
