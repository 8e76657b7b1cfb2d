package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/intakebot/internal/report"
)

// NewReportHandler returns a handler that generates the report for the given
// period, sends the file to the requesting staff chat, and mirrors it to the
// head office email.
func NewReportHandler(deps HandlerDeps, period report.Period) bot.HandlerFunc {
	return reportHandler{deps: deps, period: period}.Handle
}

type reportHandler struct {
	deps   HandlerDeps
	period report.Period
}

func (h reportHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "report", "period", h.period)

	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	log = log.With("chat_id", chatID)

	filePath, err := h.deps.Reports.Generate(ctx, h.period)
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate report", "error", err)
		sendGeneralError(ctx, b, h.deps, chatID, log)
		return
	}

	file, err := os.Open(filePath)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open generated report", "path", filePath, "error", err)
		sendGeneralError(ctx, b, h.deps, chatID, log)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.WarnContext(ctx, "Error closing report file", "error", closeErr)
		}
	}()

	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: filepath.Base(filePath),
			Data:     file,
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send report document", "path", filePath, "error", err)
		sendGeneralError(ctx, b, h.deps, chatID, log)
		return
	}

	// Email mirror is best-effort, like every other delivery.
	if h.deps.Email != nil {
		headOffice := h.deps.Config.HeadOffice()
		if headOffice.Email != "" {
			subject := fmt.Sprintf("Request report (%s)", h.period)
			body := fmt.Sprintf("Attached: request report for the trailing %s.", h.period)
			if err := h.deps.Email.Send(ctx, subject, body, headOffice.Email, filePath); err != nil {
				log.ErrorContext(ctx, "Failed to email report", "to", headOffice.Email, "error", err)
			}
		}
	}

	log.InfoContext(ctx, "Report delivered", "path", filePath)
}
