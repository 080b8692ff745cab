package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/posthog/posthog-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/corvid/threadview/backend/analytics"
	"github.com/corvid/threadview/backend/api"
	"github.com/corvid/threadview/backend/bridge"
	"github.com/corvid/threadview/backend/event"
	"github.com/corvid/threadview/backend/notification"
	"github.com/corvid/threadview/backend/reconcile"
	"github.com/corvid/threadview/backend/secret"
	"github.com/corvid/threadview/backend/thread"
	"github.com/corvid/threadview/frontend/cli/pkg/fail"
	"github.com/corvid/threadview/shared/config"
	"github.com/corvid/threadview/shared/keyring"
)

const pairCacheSize = 256

type serveOptions struct {
	Host   string
	Port   int
	DBPath string
}

func NewServeCmd() *cobra.Command {
	options := &serveOptions{}

	cmd := &cobra.Command{
		Use:     "serve [flags]",
		Short:   "Run the thread reconciliation server",
		GroupID: "core",
		Example: `  # Start with defaults from the config file
  threadview serve

  # Bind a different port
  threadview serve --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), options)
		},
	}

	cmd.Flags().StringVar(&options.Host, "host", "", "bind address (overrides config)")
	cmd.Flags().IntVar(&options.Port, "port", 0, "bind port (overrides config)")
	cmd.Flags().StringVar(&options.DBPath, "db", "", "database file path (overrides config)")

	return cmd
}

func runServe(ctx context.Context, options *serveOptions) error {
	fs := getFileSystem(ctx)
	cfgStore := config.NewStore(fs)
	cfg, err := cfgStore.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if options.Host != "" {
		cfg.Server.Host = options.Host
	}
	if options.Port != 0 {
		cfg.Server.Port = options.Port
	}
	if options.DBPath != "" {
		cfg.Database.Path = options.DBPath
	}

	logger := slog.Default()
	registry := prometheus.NewRegistry()

	threadStore, err := thread.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open thread store: %w", err)
	}
	defer threadStore.Close()

	notifStore, err := notification.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open notification store: %w", err)
	}
	defer notifStore.Close()

	bus := event.NewBus(registry)
	defer bus.Close()
	router := event.NewEventRouter(event.DefaultChannelBufferSize)
	defer router.Close()

	store := event.NewRecordingStore(threadStore, router, bus)
	engine := reconcile.NewEngine(reconcile.WithMetrics(registry))
	cache, err := reconcile.NewPairCache(engine, pairCacheSize)
	if err != nil {
		return fmt.Errorf("create pair cache: %w", err)
	}

	secrets, err := buildSecretProvider(ctx, cfgStore)
	if err != nil {
		return fmt.Errorf("configure secrets: %w", err)
	}

	notifService := notification.NewService(
		notifStore,
		buildPusher(cfg, secrets, logger),
		buildMailer(cfg, secrets, logger),
		notification.WithBus(bus),
		notification.WithBatchRateLimit(rate.Limit(cfg.Expo.SendsPerSecond), 2*int(cfg.Expo.SendsPerSecond)),
		notification.WithLogger(logger),
	)

	if cfg.PostHog.APIKey != "" {
		client, err := posthog.NewWithConfig(cfg.PostHog.APIKey, posthog.Config{Endpoint: cfg.PostHog.Endpoint})
		if err != nil {
			logger.Warn("analytics disabled", "error", err)
		} else {
			defer client.Close()
			detach := analytics.Attach(bus, client)
			defer detach()
		}
	}

	server := api.NewServer(api.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		AdminToken: cfg.Server.AdminToken,
	}, store, cache, notifService, notifStore, router,
		api.WithLogger(logger),
		api.WithMetrics(registry),
		api.WithBus(bus),
	)

	ws := bridge.New(router, bridge.WithLogger(logger), bridge.WithBus(bus))
	server.Handler().GET("/ws", gin.WrapH(ws))

	logger.Info("starting threadview server",
		"host", cfg.Server.Host, "port", cfg.Server.Port, "db", cfg.Database.Path)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.Run(ctx); err != nil && err != http.ErrServerClosed {
		return fail.Enhance(addr, err)
	}
	return nil
}

// buildSecretProvider layers the OS keychain over a file fallback under the
// config directory.
func buildSecretProvider(ctx context.Context, cfgStore *config.Store) (secret.Provider, error) {
	cfgDir, err := cfgStore.ConfigDir()
	if err != nil {
		return nil, err
	}
	fileProvider, err := secret.NewFileProvider(filepath.Join(cfgDir, "secrets"), getFileSystem(ctx).Fs)
	if err != nil {
		return nil, err
	}
	return secret.NewChain(secret.NewKeyringProvider(), fileProvider), nil
}

func buildPusher(cfg *config.Config, secrets secret.Provider, logger *slog.Logger) notification.Pusher {
	accessToken, err := secrets.Get(cfg.Expo.TokenRef)
	if err != nil {
		if !errors.Is(err, &keyring.ErrSecretNotFound{}) {
			logger.Warn("failed to read expo access token", "error", err)
		}
		accessToken = ""
	}
	return notification.NewExpoClient(cfg.Expo.APIURL, accessToken,
		notification.WithExpoRateLimit(rate.Limit(cfg.Expo.SendsPerSecond), 2*int(cfg.Expo.SendsPerSecond)))
}

func buildMailer(cfg *config.Config, secrets secret.Provider, logger *slog.Logger) notification.Mailer {
	if !cfg.Email.Enabled {
		return disabledMailer{}
	}

	password, err := secrets.Get(cfg.Email.PasswordRef)
	if err != nil {
		logger.Warn("smtp password not available, email delivery will fail", "error", err)
	}

	return notification.NewSMTPMailer(notification.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.FromAddress,
		Password: password,
		From:     cfg.Email.FromAddress,
		FromName: cfg.Email.FromName,
	})
}

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, notification.Email) error {
	return errors.New("email delivery is disabled")
}
