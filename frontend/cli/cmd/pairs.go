package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid/threadview/backend/api/conv"
	"github.com/corvid/threadview/backend/reconcile"
	"github.com/corvid/threadview/backend/thread"
	"github.com/corvid/threadview/frontend/cli/pkg/terminal"
)

type pairsOptions struct {
	JSON  bool
	Width int
}

func NewPairsCmd() *cobra.Command {
	options := &pairsOptions{}

	cmd := &cobra.Command{
		Use:     "pairs <messages-file>",
		Short:   "Reconcile a thread dump into tool call/result pairs",
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		Example: `  # Render the pairs of an exported thread
  threadview pairs thread.json

  # Machine-readable output
  threadview pairs thread.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := loadMessages(cmd, args[0])
			if err != nil {
				return err
			}

			engine := reconcile.NewEngine()
			pairs := conv.ConvertPairs(engine.Reconcile(msgs))

			if options.JSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(pairs)
			}

			fmt.Fprintln(cmd.OutOrStdout(), terminal.RenderPairs(pairs, options.Width))
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), terminal.Summary(pairs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&options.JSON, "json", false, "emit pairs as JSON")
	cmd.Flags().IntVar(&options.Width, "width", 0, "wrap output at this width (0 = no wrap)")

	return cmd
}

// loadMessages accepts either a bare message array or an export object with
// a top-level "messages" key.
func loadMessages(cmd *cobra.Command, path string) ([]thread.Message, error) {
	fs := getFileSystem(cmd.Context())
	content, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var msgs []thread.Message
	if err := json.Unmarshal(content, &msgs); err == nil {
		return msgs, nil
	}

	var export struct {
		Messages []thread.Message `json:"messages"`
	}
	if err := json.Unmarshal(content, &export); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if export.Messages == nil {
		return nil, fmt.Errorf("%s contains no messages", path)
	}
	return export.Messages, nil
}
