// Package intake implements the request lifecycle manager: the state machine
// that tracks a client's in-progress submission across conversational turns,
// accumulates content items, and transitions the request through branch
// selection, content collection, confirmation, dispatch, and the staff reply
// cycle.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/edgard/intakebot/internal/action"
	"github.com/edgard/intakebot/internal/config"
	"github.com/edgard/intakebot/internal/database"
	"github.com/edgard/intakebot/internal/notify"
)

// ErrUnknownBranch indicates a branch value outside the configured set.
var ErrUnknownBranch = errors.New("unknown branch")

// Notifier receives finalized requests and staff replies for fan-out.
// Implemented by notify.Dispatcher; fakes stand in for it in tests.
type Notifier interface {
	DispatchRequest(ctx context.Context, req *database.Request)
	DispatchReply(ctx context.Context, req *database.Request, replyText string)
}

// Manager owns the conversation state table and drives request lifecycle
// transitions against the store. Validation and not-found conditions are
// recovered locally: the initiating party gets a plain-language message and
// the state machine does not advance. Storage errors abort the transition
// and are returned to the caller, which surfaces a generic apology.
type Manager struct {
	store    database.Store
	chat     notify.ChatSender
	notifier Notifier
	cfg      *config.Config
	logger   *slog.Logger

	sessions *sessionTable

	// Requests that reached Dispatched or Closed in this process. The
	// persisted schema carries no status column; this is the cross-turn
	// integrity guard that keeps closed requests immutable.
	mu         sync.Mutex
	dispatched map[string]bool
	closed     map[string]bool
}

// NewManager creates a Manager over the given store and collaborators.
func NewManager(store database.Store, chat notify.ChatSender, notifier Notifier, cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		store:      store,
		chat:       chat,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With("component", "intake_manager"),
		sessions:   newSessionTable(),
		dispatched: make(map[string]bool),
		closed:     make(map[string]bool),
	}
}

func (m *Manager) isDispatched(requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dispatched[requestID] || m.closed[requestID]
}

func (m *Manager) markDispatched(requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dispatched[requestID] || m.closed[requestID] {
		return false
	}
	m.dispatched[requestID] = true
	return true
}

func (m *Manager) markClosed(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed[requestID] = true
}

// Start resets the client's dialogue position and shows the main menu.
// Idempotent; does not touch storage.
func (m *Manager) Start(ctx context.Context, clientID int64) error {
	m.sessions.reset(clientID)

	buttons := []notify.Button{
		{Label: "Submit a request", Payload: action.NewRequestPayload()},
		{Label: "About", Payload: action.AboutPayload()},
	}
	if err := m.chat.SendText(ctx, clientID, m.cfg.Messages.Welcome, buttons); err != nil {
		return fmt.Errorf("failed to send welcome menu: %w", err)
	}
	return nil
}

// About shows the about blurb with a shortcut back into the intake flow.
func (m *Manager) About(ctx context.Context, clientID int64) error {
	buttons := []notify.Button{
		{Label: "Submit a request", Payload: action.NewRequestPayload()},
	}
	if err := m.chat.SendText(ctx, clientID, m.cfg.Messages.About, buttons); err != nil {
		return fmt.Errorf("failed to send about message: %w", err)
	}
	return nil
}

// BeginRequest moves the client into branch selection and shows the branch
// keyboard. No request row exists yet; creation happens at ChooseBranch.
func (m *Manager) BeginRequest(ctx context.Context, clientID int64) error {
	sess := m.sessions.reset(clientID)
	sess.stage = stageBranchSelect

	buttons := make([]notify.Button, 0, len(m.cfg.Branches))
	for _, b := range m.cfg.Branches {
		buttons = append(buttons, notify.Button{
			Label:   b.Name,
			Payload: action.ChooseBranchPayload(b.Name),
		})
	}
	if err := m.chat.SendText(ctx, clientID, m.cfg.Messages.ChooseBranch, buttons); err != nil {
		return fmt.Errorf("failed to send branch keyboard: %w", err)
	}
	return nil
}

// ChooseBranch creates the request with the chosen branch and moves the
// client into content collection. Unknown branch values are recovered
// locally by re-prompting.
func (m *Manager) ChooseBranch(ctx context.Context, clientID int64, branch string) error {
	branchCfg, ok := m.cfg.FindBranch(branch)
	if !ok {
		m.logger.WarnContext(ctx, "Client chose unconfigured branch",
			"client_id", clientID, "branch", branch)
		return m.BeginRequest(ctx, clientID)
	}

	requestID, err := m.store.CreateRequest(ctx, clientID, branchCfg.Name)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	sess := m.sessions.get(clientID)
	sess.stage = stageCollecting
	sess.requestID = requestID
	sess.branch = branchCfg.Name

	msg := fmt.Sprintf(m.cfg.Messages.BranchRouted, branchCfg.Name)
	if branchCfg.ChatID == m.cfg.HeadOffice().ChatID {
		msg = m.cfg.Messages.HeadOfficeRouted
	}
	if err := m.chat.SendText(ctx, clientID, msg, nil); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send branch confirmation",
			"client_id", clientID, "error", err)
	}

	m.logger.InfoContext(ctx, "Request opened",
		"request_id", requestID, "client_id", clientID, "branch", branchCfg.Name)
	return nil
}

// ReceiveContent appends one content item to the client's draft and shows
// the review prompt summarizing everything accumulated so far. Content
// arriving after dispatch or closure is rejected with a notice and no write.
func (m *Manager) ReceiveContent(ctx context.Context, clientID int64, kind database.ContentKind, payload string) error {
	sess := m.sessions.get(clientID)

	if sess.requestID != "" && m.isDispatched(sess.requestID) {
		return m.notice(ctx, clientID, m.cfg.Messages.AlreadyDispatched)
	}
	switch sess.stage {
	case stageCollecting, stageReview:
		// Draft is open for content.
	case stageDispatched, stageClosed:
		return m.notice(ctx, clientID, m.cfg.Messages.AlreadyDispatched)
	default:
		return m.notice(ctx, clientID, m.cfg.Messages.NoActiveDraft)
	}

	err := m.store.AppendItem(ctx, sess.requestID, kind, payload)
	switch {
	case errors.Is(err, database.ErrInvalidKind):
		return m.notice(ctx, clientID, m.cfg.Messages.UnsupportedContent)
	case errors.Is(err, database.ErrNotFound):
		m.sessions.reset(clientID)
		return m.notice(ctx, clientID, m.cfg.Messages.NoActiveDraft)
	case err != nil:
		return fmt.Errorf("failed to append content item: %w", err)
	}

	sess.stage = stageReview

	req, err := m.store.GetRequest(ctx, sess.requestID)
	if err != nil {
		return fmt.Errorf("failed to load request for review: %w", err)
	}

	buttons := []notify.Button{
		{Label: "Send", Payload: action.ConfirmSendPayload(sess.requestID)},
		{Label: "Edit", Payload: action.EditDraftPayload(sess.requestID)},
		{Label: "Add more", Payload: action.AddMorePayload(sess.requestID)},
	}
	prompt := fmt.Sprintf(m.cfg.Messages.ReviewPrompt, notify.Summary(req.Items))
	if err := m.chat.SendText(ctx, clientID, prompt, buttons); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send review prompt",
			"client_id", clientID, "request_id", sess.requestID, "error", err)
	}
	return nil
}

// Confirm freezes the draft's item set, marks the request dispatched, and
// triggers notification fan-out exactly once per confirmation. A repeated
// confirmation of the same request is a no-op with a notice.
func (m *Manager) Confirm(ctx context.Context, clientID int64, requestID string) error {
	req, err := m.store.GetRequest(ctx, requestID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return m.notice(ctx, clientID, m.cfg.Messages.NoActiveDraft)
	case err != nil:
		return fmt.Errorf("failed to load request for dispatch: %w", err)
	}

	if !m.markDispatched(requestID) {
		return m.notice(ctx, clientID, m.cfg.Messages.AlreadyDispatched)
	}

	sess := m.sessions.get(clientID)
	sess.stage = stageDispatched

	// Fan-out is best-effort past this point: the request counts as
	// dispatched even if a downstream notification fails.
	m.notifier.DispatchRequest(ctx, req)

	if err := m.chat.SendText(ctx, clientID, m.cfg.Messages.ThankYou, nil); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send dispatch confirmation",
			"client_id", clientID, "request_id", requestID, "error", err)
	}

	m.logger.InfoContext(ctx, "Request dispatched",
		"request_id", requestID, "client_id", clientID, "item_count", len(req.Items))
	return nil
}

// EditDraft discards the draft's accumulated items and returns the client to
// content collection. The request row itself is untouched.
func (m *Manager) EditDraft(ctx context.Context, clientID int64, requestID string) error {
	if m.isDispatched(requestID) {
		return m.notice(ctx, clientID, m.cfg.Messages.AlreadyDispatched)
	}

	if err := m.store.ClearItems(ctx, requestID); err != nil {
		return fmt.Errorf("failed to clear draft items: %w", err)
	}

	sess := m.sessions.get(clientID)
	sess.stage = stageCollecting
	sess.requestID = requestID

	return m.notice(ctx, clientID, m.cfg.Messages.DraftCleared)
}

// AddMore keeps the existing items and reopens content collection,
// distinguishing "append more" from EditDraft's "discard and redo".
func (m *Manager) AddMore(ctx context.Context, clientID int64, requestID string) error {
	if m.isDispatched(requestID) {
		return m.notice(ctx, clientID, m.cfg.Messages.AlreadyDispatched)
	}

	sess := m.sessions.get(clientID)
	sess.stage = stageCollecting
	sess.requestID = requestID

	return m.notice(ctx, clientID, m.cfg.Messages.SendMore)
}

// BeginReply records the staff member's reply target and prompts for the
// reply text.
func (m *Manager) BeginReply(ctx context.Context, staffChatID, clientID int64, requestID string) error {
	sess := m.sessions.reset(staffChatID)
	sess.stage = stageAwaitingReply
	sess.replyClientID = clientID
	sess.replyRequestID = requestID

	return m.notice(ctx, staffChatID, m.cfg.Messages.EnterReply)
}

// RecordAdminReply stores the staff reply text on the request and shows a
// preview with send/edit buttons. Without a reply target on the staff
// session the message cannot be attributed and is recovered locally.
func (m *Manager) RecordAdminReply(ctx context.Context, staffChatID int64, text string) error {
	sess := m.sessions.get(staffChatID)
	if sess.stage != stageAwaitingReply || sess.replyRequestID == "" {
		return m.notice(ctx, staffChatID, m.cfg.Messages.ReplyTargetMissing)
	}

	err := m.store.UpdateRequest(ctx, sess.replyRequestID, database.RequestChanges{AdminResponse: &text})
	switch {
	case errors.Is(err, database.ErrNotFound):
		m.sessions.reset(staffChatID)
		return m.notice(ctx, staffChatID, m.cfg.Messages.ReplyTargetMissing)
	case err != nil:
		return fmt.Errorf("failed to record admin reply: %w", err)
	}

	sess.stage = stageReplyPreview

	buttons := []notify.Button{
		{Label: "Send", Payload: action.SendToClientPayload(sess.replyClientID, sess.replyRequestID)},
		{Label: "Edit", Payload: action.EditReplyPayload(sess.replyClientID, sess.replyRequestID)},
	}
	preview := fmt.Sprintf(m.cfg.Messages.ReplyPreview, text)
	if err := m.chat.SendText(ctx, staffChatID, preview, buttons); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send reply preview",
			"staff_chat_id", staffChatID, "request_id", sess.replyRequestID, "error", err)
	}

	m.logger.InfoContext(ctx, "Admin reply recorded",
		"request_id", sess.replyRequestID, "staff_chat_id", staffChatID)
	return nil
}

// SendReply delivers the recorded reply to the client, mirrors it to head
// office, and closes the request. Confirming delivery before any reply was
// recorded is detectable misuse: the staff member gets a notice and nothing
// is sent to the client.
func (m *Manager) SendReply(ctx context.Context, staffChatID, clientID int64, requestID string) error {
	req, err := m.store.GetRequest(ctx, requestID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return m.notice(ctx, staffChatID, m.cfg.Messages.ReplyTargetMissing)
	case err != nil:
		return fmt.Errorf("failed to load request for reply: %w", err)
	}

	if !req.AdminResponse.Valid || req.AdminResponse.String == "" {
		m.logger.WarnContext(ctx, "Reply send confirmed with no stored reply",
			"request_id", requestID, "staff_chat_id", staffChatID)
		return m.notice(ctx, staffChatID, m.cfg.Messages.NoStoredReply)
	}

	m.notifier.DispatchReply(ctx, req, req.AdminResponse.String)
	m.markClosed(requestID)
	m.sessions.reset(staffChatID)

	if err := m.chat.SendText(ctx, staffChatID, m.cfg.Messages.ReplySent, nil); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send reply confirmation",
			"staff_chat_id", staffChatID, "request_id", requestID, "error", err)
	}

	m.logger.InfoContext(ctx, "Request closed",
		"request_id", requestID, "client_id", clientID)
	return nil
}

// EditReply keeps the reply target and prompts the staff member to enter the
// reply text again.
func (m *Manager) EditReply(ctx context.Context, staffChatID, clientID int64, requestID string) error {
	sess := m.sessions.get(staffChatID)
	sess.stage = stageAwaitingReply
	sess.replyClientID = clientID
	sess.replyRequestID = requestID

	return m.notice(ctx, staffChatID, m.cfg.Messages.ReplyEditPrompt)
}

// notice sends a plain-language recovery message without advancing state.
func (m *Manager) notice(ctx context.Context, chatID int64, text string) error {
	if err := m.chat.SendText(ctx, chatID, text, nil); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send notice", "chat_id", chatID, "error", err)
	}
	return nil
}
