package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inviter_bot/internal/app"
	"inviter_bot/internal/domain/settings"
	"inviter_bot/internal/infra/config"
	idb "inviter_bot/internal/infra/database"
	ihttp "inviter_bot/internal/infra/http"
	"inviter_bot/internal/infra/logger"
	"inviter_bot/internal/infra/metrics"
	"inviter_bot/internal/infra/scheduler"
	"inviter_bot/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const menuCacheTTL = time.Minute

func main() {
	fmt.Println("Inviter Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	if cfg.MigrateOnStart {
		if err := idb.Migrate(ctx, db, logger.Component("database")); err != nil {
			mainLogger.WithError(err).Fatal("Could not apply database migrations")
		}
	}

	// Initialize Repositories
	memberRepo := idb.NewPostgresMemberRepository(db)
	contentRepo := idb.NewPostgresContentRepository(db)
	ledger := idb.NewPostgresDeliveryLedger(db)
	broadcastRepo := idb.NewPostgresBroadcastRepository(db)
	onboardingRepo := idb.NewPostgresOnboardingRepository(db)
	joinRequestRepo := idb.NewPostgresJoinRequestRepository(db)
	settingsRepo := idb.NewPostgresSettingsRepository(db)
	menuRepo := idb.NewPostgresMenuRepository(db)
	inviteRepo := idb.NewPostgresInviteRepository(db)

	token, source, err := resolveToken(ctx, settingsRepo, cfg.TelegramToken)
	if err != nil {
		mainLogger.WithError(err).Fatal("No bot token available")
	}
	mainLogger.WithField("source", source).Info("Bot token resolved")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token: token,
		Poller: &telebot.LongPoller{
			Timeout:        cfg.LongPollTimeout,
			AllowedUpdates: telegram.AllowedUpdates,
		},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Unhandled bot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	client := telegram.NewTelebotAdapter(bot)

	// Application services
	approvalService := app.NewApprovalService(settingsRepo, joinRequestRepo, memberRepo, client, logger.Component("approval"))
	onboardingService := app.NewOnboardingService(onboardingRepo, memberRepo, client, approvalService, logger.Component("onboarding"))
	deliveryService := app.NewDeliveryService(memberRepo, contentRepo, ledger, broadcastRepo, client, app.DeliveryConfig{
		SendInterval: cfg.BroadcastSendInterval,
		Window:       cfg.DripWindow,
	}, logger.Component("delivery"))
	menuCache := app.NewMenuCache(menuRepo, menuCacheTTL)
	router := app.NewEventRouter(memberRepo, inviteRepo, joinRequestRepo, menuCache, onboardingService, approvalService, deliveryService, client, logger.Component("router"))
	adminService := app.NewAdminService(memberRepo, joinRequestRepo, broadcastRepo, approvalService, deliveryService, client, cfg.AdminTelegramID)

	// Register Handlers
	handlerLogger := logger.Component("telegram")
	telegram.RegisterAdminHandlers(ctx, bot, adminService, menuCache, cfg.AdminTelegramID, handlerLogger)
	telegram.RegisterMemberHandlers(ctx, bot, router, handlerLogger)
	mainLogger.Info("Telegram handlers registered.")

	// Metrics and health endpoint
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)
	var httpServer *ihttp.Server
	if cfg.MetricsAddr != "" {
		httpServer = ihttp.NewServer(cfg.MetricsAddr, registry, db, logger.Component("http"))
		go func() {
			if err := httpServer.Start(); err != nil {
				mainLogger.WithError(err).Error("HTTP server stopped")
			}
		}()
	}

	// Delivery scheduler
	deliveryScheduler := scheduler.NewDeliveryScheduler(deliveryService, cfg.CronSpecDelivery, logger.Component("scheduler"))
	if err := deliveryScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start delivery scheduler")
	}

	mainLogger.Info("Application setup complete. Bot and scheduler are running.")
	go bot.Start()

	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	deliveryScheduler.Stop()
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("HTTP server shutdown failed")
		}
		cancel()
	}
	mainLogger.Info("Application shut down gracefully.")
}

// resolveToken prefers the token stored in the bot_token setting over the environment.
func resolveToken(ctx context.Context, repo settings.Repository, envToken string) (string, string, error) {
	stored, found, err := repo.Get(ctx, settings.KeyBotToken)
	if err != nil {
		logger.Component("main").WithError(err).Warn("Could not read bot_token setting, falling back to environment")
	}
	if found && strings.TrimSpace(stored) != "" {
		return strings.TrimSpace(stored), "database", nil
	}
	if envToken != "" {
		return envToken, "environment", nil
	}
	return "", "", fmt.Errorf("neither the %s setting nor TELEGRAM_TOKEN is set", settings.KeyBotToken)
}
