package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/subgate/subgate/internal/bot"
	"github.com/subgate/subgate/internal/config"
	"github.com/subgate/subgate/internal/database"
	"github.com/subgate/subgate/internal/gate"
	"github.com/subgate/subgate/internal/handlers"
	"github.com/subgate/subgate/internal/logging"
	"github.com/subgate/subgate/internal/services"
	"github.com/subgate/subgate/internal/store"
	"github.com/subgate/subgate/internal/sweeper"
	"github.com/subgate/subgate/internal/telegram"
)

// updateHandler fans inbound Telegram updates out to the command surface and
// the join gatekeeper. A single Poll goroutine calls it, so commands and
// membership events are processed strictly in delivery order.
type updateHandler struct {
	bot  *bot.Bot
	gate *gate.Gatekeeper
}

func (h *updateHandler) HandleCommand(ctx context.Context, principalID int64, displayName, command string) {
	h.bot.HandleCommand(ctx, principalID, displayName, command)
}

func (h *updateHandler) HandleChatMember(ctx context.Context, groupID, principalID int64, inviteLink, newStatus string) {
	h.gate.HandleChatMember(ctx, groupID, principalID, inviteLink, newStatus)
}

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.BotToken == "" {
		slog.Error("BOT_TOKEN environment variable is required")
		os.Exit(1)
	}
	if cfg.ChannelID == 0 {
		slog.Error("CHANNEL_ID environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Log cleanup (30-day retention)
	logging.StartCleanup(ctx, database.DB)

	// Telegram adapter (group backend + transport)
	tg, err := telegram.New(cfg.BotToken, cfg.ChannelID)
	if err != nil {
		slog.Error("telegram connection failed", "error", err)
		os.Exit(1)
	}

	// Core components
	st := store.New(database.DB)
	subscriptionService := services.NewSubscriptionService(st)
	inviteService := services.NewInviteService(st, tg)
	gatekeeper := gate.New(st, tg, tg, cfg.ChannelID)
	commandBot := bot.New(st, subscriptionService, inviteService, tg, cfg.InviteValidity, cfg.GrantDays)
	expirySweeper := sweeper.New(st, tg, tg, cfg.SweepInterval)

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	paymentHandler := handlers.NewPaymentHandler(st, subscriptionService, cfg.WebhookToken)

	// Fiber app (ops surface)
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))

	app.Get("/health", healthHandler.Check)
	app.Post("/webhooks/payment", paymentHandler.HandleConfirmation)

	// Background tasks
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		tg.Poll(ctx, &updateHandler{bot: commandBot, gate: gatekeeper})
	}()
	go expirySweeper.Run(ctx)

	go func() {
		slog.Info("http server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("http server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("bot started", "channel_id", cfg.ChannelID, "sweep_interval", cfg.SweepInterval.String())

	// Graceful shutdown: stop accepting updates, drain the in-flight one,
	// let the sweeper observe cancellation.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down...")

	cancel()
	<-pollDone

	if err := app.Shutdown(); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
