// Package main contains the entrypoint for the Telegram intake bot.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/intakebot/internal/bot"
	"github.com/edgard/intakebot/internal/bot/handlers"
	"github.com/edgard/intakebot/internal/bot/tasks"
	"github.com/edgard/intakebot/internal/config"
	"github.com/edgard/intakebot/internal/database"
	"github.com/edgard/intakebot/internal/intake"
	"github.com/edgard/intakebot/internal/logger"
	"github.com/edgard/intakebot/internal/mailer"
	"github.com/edgard/intakebot/internal/notify"
	"github.com/edgard/intakebot/internal/report"
	"github.com/edgard/intakebot/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// mailer, intake manager, bot, scheduler), handles graceful shutdown, and
// returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	mail, err := mailer.NewMailer(cfg.SMTP, log)
	if err != nil {
		log.Error("Failed to initialize SMTP mailer", "error", err)
		return 1
	}

	// The sender is wired into handlers before the bot exists; the transport
	// is bound right after the bot is created.
	sender := telegram.NewSender(log)
	dispatcher := notify.NewDispatcher(sender, mail, cfg, log)
	manager := intake.NewManager(store, sender, dispatcher, cfg, log)
	reports := report.NewGenerator(store, cfg.Report.Dir, log)

	hDeps := handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Manager: manager,
		Reports: reports,
		Email:   mail,
	}
	tDeps := tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Reports: reports,
		Email:   mail,
		Config:  cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewContentHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	sender.Bind(tg)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	app := bot.NewBot(log, cfg, db, store, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
