package handlers

import (
	"log/slog"

	"github.com/edgard/intakebot/internal/config"
	"github.com/edgard/intakebot/internal/intake"
	"github.com/edgard/intakebot/internal/notify"
	"github.com/edgard/intakebot/internal/report"
)

// HandlerDeps provides dependencies for Telegram command, callback, and
// message handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Manager *intake.Manager
	Reports *report.Generator
	Email   notify.EmailSender
}
