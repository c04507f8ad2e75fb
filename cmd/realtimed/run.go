package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/lorrc/service-desk-realtime/internal/adapters/primary/http"
	mw "github.com/lorrc/service-desk-realtime/internal/adapters/primary/http/middleware"
	"github.com/lorrc/service-desk-realtime/internal/adapters/secondary/alert"
	"github.com/lorrc/service-desk-realtime/internal/adapters/secondary/rest"
	"github.com/lorrc/service-desk-realtime/internal/adapters/secondary/tokenstore"
	"github.com/lorrc/service-desk-realtime/internal/adapters/secondary/websocket"
	"github.com/lorrc/service-desk-realtime/internal/auth"
	"github.com/lorrc/service-desk-realtime/internal/config"
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon (default)",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	// 1. Load Configuration
	cfg, err := config.Load(envFiles()...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Structured Logger
	logger := newLogger(cfg)
	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Credentials
	store, err := openTokenStore(cfg)
	if err != nil {
		return err
	}
	tokenManager := auth.NewTokenManager(cfg.Credentials.JWTSecret, 0)
	api := rest.NewClient(cfg.Remote.APIURL, cfg.Remote.RequestTimeout, logger)
	creds := services.NewCredentialSource(store, api, tokenManager, logger)
	api.WithCredentials(creds)

	if cfg.Credentials.AccessToken != "" {
		seed := domain.Credential{
			AccessToken:  cfg.Credentials.AccessToken,
			RefreshToken: cfg.Credentials.RefreshToken,
		}
		if err := creds.Set(ctx, seed); err != nil {
			logger.Warn("could not persist configured credential", "error", err)
		}
	}

	// 4. Push channel & sync core
	wsCfg := websocket.DefaultConfig(cfg.Remote.WSURL)
	wsCfg.ReconnectAttempts = cfg.Channel.ReconnectAttempts
	wsCfg.ReconnectDelay = cfg.Channel.ReconnectDelay
	wsCfg.HandshakeTimeout = cfg.Channel.HandshakeTimeout
	wsCfg.ReadBufferSize = cfg.Channel.ReadBufferSize
	wsCfg.WriteBufferSize = cfg.Channel.WriteBufferSize
	wsCfg.TokenCheckInterval = cfg.Sync.TokenCheckInterval
	supervisor := websocket.NewSupervisor(wsCfg, creds, logger)

	opts := services.DefaultRealtimeOptions()
	opts.HeartbeatInterval = cfg.Sync.HeartbeatInterval
	opts.HeartbeatTimeout = cfg.Sync.HeartbeatTimeout
	opts.PollInterval = cfg.Sync.PollInterval
	opts.RefreshRateLimit = cfg.Sync.RefreshRateLimit
	opts.HighlightDuration = cfg.Sync.HighlightDuration
	opts.Ledger = services.LedgerOptions{
		Tickets:      cfg.Sync.TrackTickets,
		Appointments: cfg.Sync.TrackAppointments,
		Chats:        cfg.Sync.TrackChats,
	}
	opts.Hooks.OnEvent = func(e domain.InboundEvent) {
		logger.Debug("push event", "kind", e.Kind())
	}

	alerter := alert.NewLogAlerter(cfg.Sync.AlertDuration, logger)
	realtime := services.NewRealtime(creds, supervisor, api, alerter, opts, logger)

	// 5. Run
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := realtime.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.UI.Enabled {
		srv := newServer(gctx, cfg, realtime, logger)
		g.Go(func() error {
			logger.Info("ui api listening", "addr", cfg.UI.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ui api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.UI.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})
}

func openTokenStore(cfg *config.Config) (ports.TokenStore, error) {
	if cfg.Credentials.TokenStore != "keyring" {
		return tokenstore.NewMemoryStore(domain.Credential{}), nil
	}
	ring, err := tokenstore.OpenKeyring(cfg.Credentials.KeyringService, "")
	if err != nil {
		return nil, err
	}
	return tokenstore.NewKeyringStore(ring), nil
}

func newServer(ctx context.Context, cfg *config.Config, service ports.RealtimeService, logger *slog.Logger) *http.Server {
	var limiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = mw.NewRateLimiter(ctx, mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	handler := httpAdapter.NewRouter(service, httpAdapter.RouterConfig{
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.UI.AllowedOrigins,
		RateLimiter:    limiter,
	}, logging.Component(logger, "ui_api"))

	return &http.Server{
		Addr:         cfg.UI.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.UI.ReadTimeout,
		WriteTimeout: cfg.UI.WriteTimeout,
		IdleTimeout:  cfg.UI.IdleTimeout,
	}
}
