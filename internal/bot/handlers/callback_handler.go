package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/intakebot/internal/action"
)

// NewCallbackHandler returns the handler for all inline keyboard button
// presses. The opaque payload string is parsed into a tagged action exactly
// once here; downstream code only ever sees the decoded value.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return callbackHandler{deps}.Handle
}

type callbackHandler struct {
	deps HandlerDeps
}

func (h callbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "callback")

	q := update.CallbackQuery
	if q == nil {
		log.WarnContext(ctx, "Callback handler received update without callback query", "update_id", update.ID)
		return
	}

	// Stop the client-side loading animation regardless of outcome.
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID}); err != nil {
		log.WarnContext(ctx, "Failed to answer callback query", "error", err, "callback_query_id", q.ID)
	}

	chatID := q.From.ID
	if q.Message.Message != nil {
		chatID = q.Message.Message.Chat.ID
	} else if q.Message.InaccessibleMessage != nil {
		chatID = q.Message.InaccessibleMessage.Chat.ID
	}
	log = log.With("chat_id", chatID, "user_id", q.From.ID)

	act, err := action.Parse(q.Data)
	if err != nil {
		log.WarnContext(ctx, "Rejected malformed callback payload", "data", q.Data, "error", err)
		return
	}

	switch act.Kind {
	case action.KindNewRequest:
		err = h.deps.Manager.BeginRequest(ctx, chatID)
	case action.KindAbout:
		err = h.deps.Manager.About(ctx, chatID)
	case action.KindChooseBranch:
		err = h.deps.Manager.ChooseBranch(ctx, chatID, act.Branch)
	case action.KindConfirmSend:
		err = h.deps.Manager.Confirm(ctx, chatID, act.RequestID)
	case action.KindEditDraft:
		err = h.deps.Manager.EditDraft(ctx, chatID, act.RequestID)
	case action.KindAddMore:
		err = h.deps.Manager.AddMore(ctx, chatID, act.RequestID)
	case action.KindReplyToClient, action.KindSendToClient, action.KindEditReply:
		err = h.handleStaffAction(ctx, b, chatID, act, log)
	default:
		log.WarnContext(ctx, "Unhandled action kind", "data", q.Data)
		return
	}

	if err != nil {
		log.ErrorContext(ctx, "Callback action failed", "data", q.Data, "error", err)
		sendGeneralError(ctx, b, h.deps, chatID, log)
	}
}

// handleStaffAction guards the reply-cycle actions behind the staff
// allow-list before forwarding them to the manager.
func (h callbackHandler) handleStaffAction(ctx context.Context, b *bot.Bot, chatID int64, act action.Action, log *slog.Logger) error {
	if !h.deps.Config.IsStaffChat(chatID) {
		log.WarnContext(ctx, "Reply action from non-staff chat", "request_id", act.RequestID)
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.NotAuthorized,
		})
		return err
	}

	switch act.Kind {
	case action.KindReplyToClient:
		return h.deps.Manager.BeginReply(ctx, chatID, act.ClientID, act.RequestID)
	case action.KindSendToClient:
		return h.deps.Manager.SendReply(ctx, chatID, act.ClientID, act.RequestID)
	case action.KindEditReply:
		return h.deps.Manager.EditReply(ctx, chatID, act.ClientID, act.RequestID)
	}
	return errors.New("unreachable staff action kind")
}
