package cmd

import (
	"github.com/spf13/cobra"
)

func NewNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notify",
		Short:   "Send and inspect user notifications",
		GroupID: "notify",
	}

	cmd.AddCommand(NewNotifySendCmd())

	return cmd
}
