package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/intakebot/internal/database"
	"github.com/edgard/intakebot/internal/notify"
)

// Telegram caps media groups at ten entries.
const maxMediaGroupSize = 10

// Sender implements notify.ChatSender over a go-telegram/bot instance.
type Sender struct {
	bot    *bot.Bot
	logger *slog.Logger
}

// NewSender creates an unbound ChatSender. Handlers that need to send
// messages are wired before the bot instance exists, so the transport is
// attached later with Bind; nothing sends before the bot starts.
func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sender{
		logger: logger.With("component", "telegram_sender"),
	}
}

// Bind attaches the bot instance the sender delivers through. Must be called
// before the bot starts processing updates.
func (s *Sender) Bind(b *bot.Bot) {
	s.bot = b
}

// SendText sends a plain text message, optionally with an inline keyboard of
// one button per row.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string, buttons []notify.Button) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if len(buttons) > 0 {
		rows := make([][]models.InlineKeyboardButton, 0, len(buttons))
		for _, btn := range buttons {
			rows = append(rows, []models.InlineKeyboardButton{
				{Text: btn.Label, CallbackData: btn.Payload},
			})
		}
		params.ReplyMarkup = models.InlineKeyboardMarkup{InlineKeyboard: rows}
	}

	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// SendMediaGroup delivers media references in stored order. Photos and
// videos travel in album batches; voice notes cannot join a Telegram media
// group and are sent individually at their position in the sequence.
func (s *Sender) SendMediaGroup(ctx context.Context, chatID int64, items []notify.MediaItem) error {
	var batch []models.InputMedia

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		defer func() { batch = nil }()

		if len(batch) == 1 {
			return s.sendSingle(ctx, chatID, batch[0])
		}
		if _, err := s.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
			ChatID: chatID,
			Media:  batch,
		}); err != nil {
			return fmt.Errorf("failed to send media group to chat %d: %w", chatID, err)
		}
		return nil
	}

	for _, item := range items {
		switch item.Kind {
		case database.KindPhoto:
			batch = append(batch, &models.InputMediaPhoto{Media: item.FileID})
		case database.KindVideo:
			batch = append(batch, &models.InputMediaVideo{Media: item.FileID})
		case database.KindVoice:
			if err := flush(); err != nil {
				return err
			}
			if _, err := s.bot.SendVoice(ctx, &bot.SendVoiceParams{
				ChatID: chatID,
				Voice:  &models.InputFileString{Data: item.FileID},
			}); err != nil {
				return fmt.Errorf("failed to send voice note to chat %d: %w", chatID, err)
			}
		default:
			s.logger.WarnContext(ctx, "Skipping media item of unexpected kind",
				"chat_id", chatID, "kind", item.Kind)
		}

		if len(batch) == maxMediaGroupSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

func (s *Sender) sendSingle(ctx context.Context, chatID int64, media models.InputMedia) error {
	switch m := media.(type) {
	case *models.InputMediaPhoto:
		if _, err := s.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: chatID,
			Photo:  &models.InputFileString{Data: m.Media},
		}); err != nil {
			return fmt.Errorf("failed to send photo to chat %d: %w", chatID, err)
		}
	case *models.InputMediaVideo:
		if _, err := s.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID: chatID,
			Video:  &models.InputFileString{Data: m.Media},
		}); err != nil {
			return fmt.Errorf("failed to send video to chat %d: %w", chatID, err)
		}
	}
	return nil
}
