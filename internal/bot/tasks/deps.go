// Package tasks implements scheduled tasks for the intake bot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"log/slog"

	"github.com/edgard/intakebot/internal/config"
	"github.com/edgard/intakebot/internal/database"
	"github.com/edgard/intakebot/internal/notify"
	"github.com/edgard/intakebot/internal/report"
)

// TaskDeps contains all dependencies required by scheduled tasks.
// It provides access to logging, the database store, report generation,
// email delivery, and configuration.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Reports *report.Generator
	Email   notify.EmailSender
	Config  *config.Config
}
