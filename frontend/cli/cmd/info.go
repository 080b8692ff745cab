package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "info",
		Short:   "Show build and runtime information",
		GroupID: "system",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "version:    %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit:     %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "built:      %s\n", BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "go:         %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
