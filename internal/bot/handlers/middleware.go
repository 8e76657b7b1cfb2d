// Package handlers contains Telegram bot command, callback, and message
// handlers, along with their registration logic and middleware.
package handlers

import (
	"context"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// StaffOnly creates a middleware that checks the message originates from a
// configured staff chat (a branch channel or head office). Otherwise it
// sends a "not authorized" message and stops processing.
func StaffOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil {
				next(ctx, bot, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !deps.Config.IsStaffChat(chatID) {
				log := deps.Logger.With("middleware", "StaffOnly")
				log.WarnContext(ctx, "Unauthorized staff command attempt", "chat_id", chatID)

				_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
					ChatID: chatID,
					Text:   deps.Config.Messages.NotAuthorized,
				})
				if err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}
				return
			}

			next(ctx, bot, update)
		}
	}
}

// sendGeneralError surfaces the generic apology after a storage or
// transport failure aborted a transition.
func sendGeneralError(ctx context.Context, b *tgbot.Bot, deps HandlerDeps, chatID int64, log *slog.Logger) {
	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   deps.Config.Messages.GeneralError,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send error message", "error", err, "chat_id", chatID)
	}
}
