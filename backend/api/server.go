package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corvid/threadview/backend/event"
	"github.com/corvid/threadview/backend/notification"
	"github.com/corvid/threadview/backend/reconcile"
	"github.com/corvid/threadview/backend/thread"
)

// Config holds the HTTP server settings.
type Config struct {
	Host string
	Port int

	// AdminToken guards the /admin routes. Empty disables them.
	AdminToken string

	// Debug switches gin out of release mode.
	Debug bool
}

// Server exposes threads, reconciled pairs, and notifications over HTTP.
type Server struct {
	cfg    Config
	engine *gin.Engine
	http   *http.Server
	logger *slog.Logger

	store         thread.Store
	pairs         *reconcile.PairCache
	notifications *notification.Service
	notifStore    notification.Store
	router        *event.EventRouter
	bus           *event.Bus
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithBus publishes typed events (reconcile passes) to the given bus, so
// analytics and other in-process consumers observe API-triggered work.
func WithBus(bus *event.Bus) ServerOption {
	return func(s *Server) { s.bus = bus }
}

// WithMetrics mounts /metrics backed by the given registry.
func WithMetrics(registry *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
}

func NewServer(
	cfg Config,
	store thread.Store,
	pairs *reconcile.PairCache,
	notifications *notification.Service,
	notifStore notification.Store,
	router *event.EventRouter,
	opts ...ServerOption,
) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowWebSockets = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", HeaderUserID)
	engine.Use(cors.New(corsConfig))

	s := &Server{
		cfg:           cfg,
		engine:        engine,
		logger:        slog.Default(),
		store:         store,
		pairs:         pairs,
		notifications: notifications,
		notifStore:    notifStore,
		router:        router,
	}
	for _, opt := range opts {
		opt(s)
	}

	engine.Use(requestLogger(s.logger))
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		respondOK(c, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/threads", s.createThread)
		v1.GET("/threads", s.listThreads)
		v1.GET("/threads/:id", s.getThread)
		v1.DELETE("/threads/:id", s.deleteThread)

		v1.POST("/threads/:id/messages", s.appendMessage)
		v1.GET("/threads/:id/messages", s.listMessages)
		v1.POST("/threads/:id/messages/:messageID/complete", s.completeMessage)

		v1.GET("/threads/:id/tool-pairs", s.listToolPairs)

		notif := v1.Group("/notifications", requireUser())
		{
			notif.GET("", s.listNotifications)
			notif.GET("/:id", s.getNotification)
			notif.GET("/unread-count", s.unreadCount)
			notif.POST("/:id/read", s.markRead)
			notif.POST("/read-all", s.markAllRead)
			notif.GET("/preferences", s.getPreferences)
			notif.PUT("/preferences", s.savePreferences)
			notif.POST("/token", s.registerPushToken)
			notif.DELETE("/token", s.clearPushToken)
		}
	}

	if s.cfg.AdminToken != "" {
		admin := s.engine.Group("/admin", requireAdmin(s.cfg.AdminToken))
		{
			admin.POST("/notifications/batch", s.batchSend)
			admin.GET("/notifications/batches", s.listBatches)
			admin.GET("/notifications/batches/:id", s.getBatch)
			admin.POST("/notifications/batches/:id/cancel", s.cancelBatch)
			admin.GET("/notifications/stats", s.notificationStats)
		}
	}
}

// Handler exposes the gin engine, so the websocket bridge and tests can mount
// on the same mux.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}

// Run serves until ctx is cancelled, then drains with a shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// reconcilePublish runs a reconciliation pass for the thread and broadcasts
// the resulting pair list to stream subscribers. Called after every message
// mutation so websocket consumers see pair-state changes without polling.
func (s *Server) reconcilePublish(ctx context.Context, threadID string) {
	msgs, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		s.logger.ErrorContext(ctx, "reconcile after mutation failed",
			"thread_id", threadID, "error", err)
		return
	}
	pairs := s.pairs.Reconcile(msgs)
	s.router.Publish(event.NewPairsUpdatedEvent(threadID, pairs))

	if s.bus != nil {
		resolved := 0
		for i := range pairs {
			if pairs[i].State == reconcile.PairStateResolved {
				resolved++
			}
		}
		event.Publish(s.bus, event.ThreadReconciledEvent{
			ThreadID: threadID,
			Pairs:    len(pairs),
			Resolved: resolved,
			Pending:  len(pairs) - resolved,
		})
	}
}
