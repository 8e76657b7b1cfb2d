// Package notify implements notification fan-out: given a finalized request,
// it decides which staff channels receive it, renders the accumulated
// content, and issues independent best-effort chat and email sends. Delivery
// failures are logged, never propagated; a confirmed request counts as
// dispatched even if a downstream notification failed.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/edgard/intakebot/internal/action"
	"github.com/edgard/intakebot/internal/config"
	"github.com/edgard/intakebot/internal/database"
)

// Button is one inline keyboard button attached to an outbound text message.
type Button struct {
	Label   string
	Payload string
}

// MediaItem is one transport media reference to deliver, in stored order.
type MediaItem struct {
	Kind   database.ContentKind
	FileID string
}

// ChatSender abstracts the chat transport's outbound surface.
type ChatSender interface {
	SendText(ctx context.Context, chatID int64, text string, buttons []Button) error
	SendMediaGroup(ctx context.Context, chatID int64, items []MediaItem) error
}

// EmailSender abstracts the email mirror. Implementations may be nil-safe
// no-ops when SMTP is not configured.
type EmailSender interface {
	Send(ctx context.Context, subject, body, to string, attachmentPaths ...string) error
}

// Dispatcher routes finalized requests and staff replies to their targets.
type Dispatcher struct {
	chat   ChatSender
	email  EmailSender
	cfg    *config.Config
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given transport collaborators.
func NewDispatcher(chat ChatSender, email EmailSender, cfg *config.Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		chat:   chat,
		email:  email,
		cfg:    cfg,
		logger: logger.With("component", "dispatcher"),
	}
}

// DispatchRequest fans a confirmed request out to the branch's staff channel
// and the head office channel. When the chosen branch is the head office,
// only one copy is sent. The branch target carries the staff reply button;
// the head office duplicate is informational.
func (d *Dispatcher) DispatchRequest(ctx context.Context, req *database.Request) {
	headOffice := d.cfg.HeadOffice()

	branchName := headOffice.Name
	if req.Branch.Valid {
		branchName = req.Branch.String
	}

	target := headOffice
	if b, ok := d.cfg.FindBranch(branchName); ok {
		target = b
	} else {
		d.logger.WarnContext(ctx, "Request routed to unconfigured branch, falling back to head office",
			"request_id", req.ID, "branch", branchName)
		branchName = headOffice.Name
	}

	text, media := groupItems(req.Items)
	header := fmt.Sprintf("New request %s\nBranch: %s\nFrom client %d", req.ID, branchName, req.RequesterID)
	replyButton := []Button{{
		Label:   "Reply",
		Payload: action.ReplyToClientPayload(req.RequesterID, req.ID),
	}}

	d.sendRendering(ctx, req.ID, target.ChatID, header, text, media, replyButton)

	// Always also the head office, deduplicated when the branch IS head office.
	if target.ChatID != headOffice.ChatID {
		d.sendRendering(ctx, req.ID, headOffice.ChatID, header, text, media, nil)
	}

	subject := fmt.Sprintf("New request %s (%s)", req.ID, branchName)
	d.mirrorEmail(ctx, req.ID, subject, emailBody(header, text, media), target.Email, headOffice.Email)
}

// DispatchReply delivers the recorded staff reply to the client and mirrors
// it to the head office channel and email. The reply must already be present
// on the request; callers guard that.
func (d *Dispatcher) DispatchReply(ctx context.Context, req *database.Request, replyText string) {
	headOffice := d.cfg.HeadOffice()

	branchName := headOffice.Name
	if req.Branch.Valid {
		branchName = req.Branch.String
	}

	clientMsg := fmt.Sprintf(d.cfg.Messages.ReplyToClient, replyText)
	if err := d.chat.SendText(ctx, req.RequesterID, clientMsg, nil); err != nil {
		d.logger.ErrorContext(ctx, "Failed to deliver reply to client",
			"request_id", req.ID, "client_id", req.RequesterID, "error", err)
	}

	mirror := fmt.Sprintf("Reply from %s sent to client %d.\nRequest: %s\nMessage: %s",
		branchName, req.RequesterID, req.ID, replyText)
	if err := d.chat.SendText(ctx, headOffice.ChatID, mirror, nil); err != nil {
		d.logger.ErrorContext(ctx, "Failed to mirror reply to head office",
			"request_id", req.ID, "error", err)
	}

	subject := fmt.Sprintf("Reply sent for request %s (%s)", req.ID, branchName)
	d.mirrorEmail(ctx, req.ID, subject, mirror, headOffice.Email)
}

// sendRendering issues the transport call sequence for one chat target,
// choosing between text-only, media-only, and mixed payload shapes so that
// no empty text block is sent and media ordering survives.
func (d *Dispatcher) sendRendering(ctx context.Context, requestID string, chatID int64, header, text string, media []MediaItem, buttons []Button) {
	if len(media) > 0 {
		if err := d.chat.SendMediaGroup(ctx, chatID, media); err != nil {
			d.logger.ErrorContext(ctx, "Failed to send media group",
				"request_id", requestID, "chat_id", chatID, "error", err)
		}
	}

	body := header
	if text != "" {
		body += "\n\n" + text
	}
	if err := d.chat.SendText(ctx, chatID, body, buttons); err != nil {
		d.logger.ErrorContext(ctx, "Failed to send request notification",
			"request_id", requestID, "chat_id", chatID, "error", err)
	}
}

// mirrorEmail sends the email mirror to each distinct non-empty address.
// Each send is independent; a failure is logged and the rest still run.
func (d *Dispatcher) mirrorEmail(ctx context.Context, requestID, subject, body string, addresses ...string) {
	if d.email == nil {
		return
	}

	seen := make(map[string]bool, len(addresses))
	for _, addr := range addresses {
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true

		if err := d.email.Send(ctx, subject, body, addr); err != nil {
			d.logger.ErrorContext(ctx, "Failed to send email mirror",
				"request_id", requestID, "to", addr, "error", err)
		}
	}
}

// groupItems splits a request's content into the concatenated free-text
// block and the roster of media references, each preserving stored order.
func groupItems(items []database.ContentItem) (string, []MediaItem) {
	var texts []string
	var media []MediaItem
	for _, item := range items {
		if item.Kind == database.KindText {
			texts = append(texts, item.Content)
			continue
		}
		media = append(media, MediaItem{Kind: item.Kind, FileID: item.Content})
	}
	return strings.Join(texts, "\n\n"), media
}

func emailBody(header, text string, media []MediaItem) string {
	var b strings.Builder
	b.WriteString(header)
	if text != "" {
		b.WriteString("\n\n")
		b.WriteString(text)
	}
	if len(media) > 0 {
		b.WriteString("\n\nAttached media references:")
		for _, m := range media {
			fmt.Fprintf(&b, "\n- %s %s", m.Kind, m.FileID)
		}
	}
	return b.String()
}

// Summary renders a short review of a draft's accumulated items for the
// client-facing confirmation prompt.
func Summary(items []database.ContentItem) string {
	if len(items) == 0 {
		return "(empty request)"
	}

	var b strings.Builder
	counts := map[database.ContentKind]int{}
	for _, item := range items {
		counts[item.Kind]++
	}
	fmt.Fprintf(&b, "%d message(s)", len(items))
	for _, kind := range []database.ContentKind{database.KindText, database.KindPhoto, database.KindVideo, database.KindVoice} {
		if counts[kind] > 0 {
			fmt.Fprintf(&b, ", %s: %d", kind, counts[kind])
		}
	}

	text, _ := groupItems(items)
	if text != "" {
		b.WriteString("\n\n")
		b.WriteString(text)
	}
	return b.String()
}
