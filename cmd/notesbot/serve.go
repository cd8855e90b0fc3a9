// AngelaMos | 2026
// serve.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/notesbot/internal/admin"
	"github.com/carterperez-dev/notesbot/internal/audit"
	"github.com/carterperez-dev/notesbot/internal/auth"
	"github.com/carterperez-dev/notesbot/internal/bot"
	"github.com/carterperez-dev/notesbot/internal/config"
	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/health"
	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/intake"
	"github.com/carterperez-dev/notesbot/internal/lifecycle"
	"github.com/carterperez-dev/notesbot/internal/metrics"
	"github.com/carterperez-dev/notesbot/internal/middleware"
	"github.com/carterperez-dev/notesbot/internal/note"
	"github.com/carterperez-dev/notesbot/internal/payment"
	"github.com/carterperez-dev/notesbot/internal/server"
	"github.com/carterperez-dev/notesbot/internal/webhook"
)

const (
	drainDelay = 5 * time.Second
)

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the payment webhook and the operator API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before starting")

	return cmd
}

//nolint:funlen // bootstrap code is inherently verbose
func runServe(parent context.Context, configPath string, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	if cfg.IsProduction() && !cfg.YooKassa.VerifyNotifications {
		logger.Warn("payment notifications are trusted without verification")
	}

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	auditLog, err := audit.New(cfg.Audit)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	collector := metrics.NewCollector(registry)

	identities := identity.NewService(identity.NewRepository(db.DB), auditLog)
	notes := note.NewRepository(db.DB)
	gateway := payment.NewClient(cfg.YooKassa, cfg.Notes, logger, collector)

	orch := lifecycle.New(lifecycle.Deps{
		Notes:   notes,
		Gateway: gateway,
		Audit:   auditLog,
		Metrics: collector,
		Logger:  logger,
	}, lifecycle.Config{
		MinDonation:         cfg.Notes.MinDonation,
		MaxDonation:         cfg.Notes.MaxDonation,
		MaxNames:            cfg.Notes.MaxNames,
		ReturnURL:           cfg.YooKassa.ReturnURL,
		VerifyNotifications: cfg.YooKassa.VerifyNotifications,
	})

	// getUpdates holds the connection for the whole poll timeout.
	httpTimeout := time.Duration(cfg.Telegram.PollTimeout)*time.Second + cfg.Telegram.SendTimeout
	api, err := tgbotapi.NewBotAPIWithClient(
		cfg.Telegram.Token,
		tgbotapi.APIEndpoint,
		&http.Client{Timeout: httpTimeout},
	)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	orch.SetNotifier(bot.NewNotifier(api, loadLocation(cfg.Notes.Timezone, logger)))

	chatBot := bot.New(bot.Deps{
		Messenger:  api,
		Identities: identities,
		Lifecycle:  orch,
		Flows:      intake.NewRedisStore(rdb.Client, cfg.Notes.FlowTTL),
		Logger:     logger,
	}, bot.Settings{
		Limits: intake.Limits{
			MaxNames:  cfg.Notes.MaxNames,
			MinAmount: cfg.Notes.MinDonation,
			MaxAmount: cfg.Notes.MaxDonation,
		},
		PaymentDescription: cfg.Notes.PaymentDescription,
	})

	dispatcher := bot.NewDispatcher(chatBot, logger, cfg.Telegram.Workers, cfg.Telegram.QueueDepth)

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: rdb},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))

	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", metrics.Handler(registry))

	webhookLimiter := middleware.NewRateLimiter(rdb.Client, middleware.RateLimitConfig{
		Name:     "webhook",
		Limit:    middleware.Per(cfg.RateLimit.Requests, cfg.RateLimit.Burst, cfg.RateLimit.Window),
		FailOpen: true,
	}).Handler

	webhook.NewHandler(orch, logger).RegisterRoutes(router, cfg.YooKassa.WebhookPath, webhookLimiter)

	if cfg.UseTelegramWebhook() {
		router.With(webhookLimiter).Post(cfg.Telegram.WebhookPath, bot.WebhookHandler(dispatcher, logger))
	}

	mountOperatorAPI(router, cfg, logger, admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: rdb.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  rdb.Ping,
		Notes:      notes,
		Roles:      identities,
	}))

	// Updates in flight get to finish after a signal, so workers run on
	// their own context and stop through dispatcher.Stop.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	dispatcher.Start(workCtx)

	var background sync.WaitGroup
	errChan := make(chan error, 2)

	background.Add(1)
	go func() {
		defer background.Done()
		lifecycle.NewSweeper(orch, logger, cfg.Notes.PendingTTL, cfg.Notes.SweepInterval).Run(ctx)
	}()

	go func() {
		errChan <- srv.Start()
	}()

	if cfg.UseTelegramWebhook() {
		hookURL := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + cfg.Telegram.WebhookPath
		if err := bot.RegisterWebhook(api, hookURL); err != nil {
			errChan <- err
		} else {
			logger.Info("telegram webhook registered", "path", cfg.Telegram.WebhookPath)
		}
	} else {
		background.Add(1)
		go func() {
			defer background.Done()
			if err := bot.Poll(ctx, api, dispatcher, cfg.Telegram.PollTimeout, logger); err != nil {
				errChan <- err
			}
		}()
	}

	healthHandler.SetReady(true)

	var runErr error
	select {
	case runErr = <-errChan:
		logger.Error("component failed, shutting down", "error", runErr)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	background.Wait()
	dispatcher.Stop()
	orch.Wait()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := auditLog.Close(); err != nil {
		logger.Error("audit log close error", "error", err)
	}

	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return runErr
}

// mountOperatorAPI exposes /v1/admin when a signing key is present. A
// missing key only disables the operator API; the bot keeps running.
func mountOperatorAPI(router chi.Router, cfg *config.Config, logger *slog.Logger, h *admin.Handler) {
	tokens, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("operator API disabled: no signing key", "path", cfg.JWT.PrivateKeyPath)
			return
		}
		logger.Error("operator API disabled", "error", err)
		return
	}

	logger.Info("operator token manager initialized",
		"algorithm", "ES256",
		"key_id", tokens.KeyID(),
	)

	router.Get("/.well-known/jwks.json", tokens.JWKSHandler())
	router.Route("/v1", func(r chi.Router) {
		h.RegisterRoutes(r, middleware.Authenticator(tokens), middleware.RequireAdmin)
	})
}

func loadLocation(name string, logger *slog.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}

	return loc
}
