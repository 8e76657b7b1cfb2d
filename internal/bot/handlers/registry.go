package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/intakebot/internal/report"
)

// RegisteredHandler represents a handler with its pattern and middleware.
// It encapsulates all information needed to register a command or callback.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all bot handlers:
// client commands, staff report commands, and the callback router. The
// default (non-command) message handler is wired separately as a bot option.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	staffMiddleware := []tgbot.Middleware{StaffOnly(deps)}

	handlers["/report_day"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "report_day",
		Handler:     NewReportHandler(deps, report.PeriodDay),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  staffMiddleware,
	}
	handlers["/report_week"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "report_week",
		Handler:     NewReportHandler(deps, report.PeriodWeek),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  staffMiddleware,
	}

	handlers["callbacks"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     "",
		Handler:     NewCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}

	return handlers
}
