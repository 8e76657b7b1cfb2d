package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/intakebot/internal/database"
)

// NewContentHandler returns the default message handler. Messages from
// staff chats feed the admin reply path; everything else is client content
// for the in-progress draft.
func NewContentHandler(deps HandlerDeps) bot.HandlerFunc {
	return contentHandler{deps}.Handle
}

type contentHandler struct {
	deps HandlerDeps
}

func (h contentHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "content")

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	// Commands are routed by their own handlers; an unknown command should
	// not end up as draft content.
	if strings.HasPrefix(msg.Text, "/") {
		return
	}

	chatID := msg.Chat.ID
	log = log.With("chat_id", chatID, "user_id", msg.From.ID)

	if h.deps.Config.IsStaffChat(chatID) {
		if msg.Text == "" {
			log.DebugContext(ctx, "Ignoring non-text message in staff chat")
			return
		}
		if err := h.deps.Manager.RecordAdminReply(ctx, chatID, msg.Text); err != nil {
			log.ErrorContext(ctx, "Failed to record admin reply", "error", err)
			sendGeneralError(ctx, b, h.deps, chatID, log)
		}
		return
	}

	kind, payload, ok := messageContent(msg)
	if !ok {
		log.DebugContext(ctx, "Client sent unsupported content type")
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Messages.UnsupportedContent,
		})
		if err != nil {
			log.ErrorContext(ctx, "Failed to send unsupported content notice", "error", err)
		}
		return
	}

	if err := h.deps.Manager.ReceiveContent(ctx, chatID, kind, payload); err != nil {
		log.ErrorContext(ctx, "Failed to receive content", "kind", kind, "error", err)
		sendGeneralError(ctx, b, h.deps, chatID, log)
	}
}

// messageContent maps an inbound message onto a content kind and its opaque
// payload: raw text, or the transport file reference for media. For photos
// the largest size is kept, matching what staff should review.
func messageContent(msg *models.Message) (database.ContentKind, string, bool) {
	switch {
	case msg.Text != "":
		return database.KindText, msg.Text, true
	case len(msg.Photo) > 0:
		return database.KindPhoto, msg.Photo[len(msg.Photo)-1].FileID, true
	case msg.Video != nil:
		return database.KindVideo, msg.Video.FileID, true
	case msg.Voice != nil:
		return database.KindVoice, msg.Voice.FileID, true
	}
	return "", "", false
}
