package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/corvid/threadview/backend/notification"
	"github.com/corvid/threadview/frontend/cli/pkg/terminal"
	"github.com/corvid/threadview/shared/config"
)

type notifySendOptions struct {
	UserID   string
	Title    string
	Message  string
	Type     string
	Category string
	ThreadID string
	Email    bool
	Push     bool
	DBPath   string
}

func NewNotifySendCmd() *cobra.Command {
	options := &notifySendOptions{}

	cmd := &cobra.Command{
		Use:   "send [flags]",
		Short: "Send a notification to a user",
		Example: `  # Push only
  threadview notify send --user u_123 --title "Run finished" --message "All tools resolved" --push

  # Email and push
  threadview notify send --user u_123 --title "Heads up" --message "..." --email --push`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifySend(cmd, options)
		},
	}

	cmd.Flags().StringVar(&options.UserID, "user", "", "target user id")
	cmd.Flags().StringVar(&options.Title, "title", "", "notification title")
	cmd.Flags().StringVar(&options.Message, "message", "", "notification body")
	cmd.Flags().StringVar(&options.Type, "type", notification.TypeInfo, "notification type (info, success, warning, error, agent_complete)")
	cmd.Flags().StringVar(&options.Category, "category", "", "notification category (agent, system, billing, admin)")
	cmd.Flags().StringVar(&options.ThreadID, "thread", "", "related thread id")
	cmd.Flags().BoolVar(&options.Email, "email", false, "deliver by email")
	cmd.Flags().BoolVar(&options.Push, "push", false, "deliver by push")
	cmd.Flags().StringVar(&options.DBPath, "db", "", "database file path (overrides config)")

	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("message")

	return cmd
}

func runNotifySend(cmd *cobra.Command, options *notifySendOptions) error {
	ctx := cmd.Context()
	cfgStore := config.NewStore(getFileSystem(ctx))
	cfg, err := cfgStore.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if options.DBPath != "" {
		cfg.Database.Path = options.DBPath
	}

	store, err := notification.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open notification store: %w", err)
	}
	defer store.Close()

	secrets, err := buildSecretProvider(ctx, cfgStore)
	if err != nil {
		return fmt.Errorf("configure secrets: %w", err)
	}

	logger := slog.Default()
	service := notification.NewService(
		store,
		buildPusher(cfg, secrets, logger),
		buildMailer(cfg, secrets, logger),
		notification.WithLogger(logger),
	)

	result, err := terminal.SpinnerFunc(cmd.OutOrStdout(), "Sending notification",
		func() (notification.SendResult, error) {
			return service.Send(ctx, notification.SendRequest{
				UserID:    options.UserID,
				Title:     options.Title,
				Message:   options.Message,
				Type:      options.Type,
				Category:  options.Category,
				ThreadID:  options.ThreadID,
				SendEmail: options.Email,
				SendPush:  options.Push,
			})
		},
		terminal.WithSuccessMsg("Notification sent"),
		terminal.WithErrorMsg("Failed to send notification"),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "id: %s\nemail: %s\npush: %s\n",
		result.NotificationID,
		deliveryMark(result.EmailSent, options.Email),
		deliveryMark(result.PushSent, options.Push),
	)
	return nil
}

func deliveryMark(sent, requested bool) string {
	switch {
	case !requested:
		return "not requested"
	case sent:
		return terminal.SuccessSymbol + " sent"
	default:
		return terminal.SmallErrorSymbol + " not delivered"
	}
}
