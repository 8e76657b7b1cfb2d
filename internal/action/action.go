// Package action defines the callback payload grammar used on inline
// keyboard buttons. Payloads are short strings carrying an action tag plus
// identifiers; they are parsed into a tagged Action value once, at the
// transport boundary, and never re-parsed downstream.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadPayload indicates a callback payload that does not match the grammar.
var ErrBadPayload = errors.New("malformed callback payload")

// Kind tags the variant of a parsed Action.
type Kind int

const (
	// KindNewRequest opens a new submission from the main menu.
	KindNewRequest Kind = iota
	// KindAbout shows the about blurb.
	KindAbout
	// KindChooseBranch selects the destination branch (Branch field set).
	KindChooseBranch
	// KindConfirmSend dispatches the draft (RequestID field set).
	KindConfirmSend
	// KindEditDraft discards the draft's items and restarts collection.
	KindEditDraft
	// KindAddMore keeps collecting without clearing existing items.
	KindAddMore
	// KindReplyToClient starts a staff reply (ClientID, RequestID set).
	KindReplyToClient
	// KindSendToClient delivers the recorded staff reply.
	KindSendToClient
	// KindEditReply restarts the staff reply entry.
	KindEditReply
)

// Action is the tagged variant decoded from a callback payload. Only the
// fields implied by Kind are populated.
type Action struct {
	Kind      Kind
	Branch    string
	RequestID string
	ClientID  int64
}

const (
	payloadNewRequest   = "new_request"
	payloadAbout        = "about_bot"
	prefixChooseBranch  = "branch_"
	prefixConfirmSend   = "confirm_send_"
	prefixEditDraft     = "edit_message_"
	prefixAddMore       = "add_more_"
	prefixReplyToClient = "reply-to-client_"
	prefixSendToClient  = "send-to-client_"
	prefixEditReply     = "edit-response_"
)

// Parse decodes a callback payload into an Action. Unknown tags, missing
// fields, and non-numeric client identifiers are all ErrBadPayload.
func Parse(payload string) (Action, error) {
	switch payload {
	case payloadNewRequest:
		return Action{Kind: KindNewRequest}, nil
	case payloadAbout:
		return Action{Kind: KindAbout}, nil
	}

	switch {
	case strings.HasPrefix(payload, prefixChooseBranch):
		branch := strings.TrimPrefix(payload, prefixChooseBranch)
		if branch == "" {
			return Action{}, fmt.Errorf("%w: empty branch in %q", ErrBadPayload, payload)
		}
		return Action{Kind: KindChooseBranch, Branch: branch}, nil

	case strings.HasPrefix(payload, prefixConfirmSend):
		return requestAction(KindConfirmSend, payload, prefixConfirmSend)

	case strings.HasPrefix(payload, prefixEditDraft):
		return requestAction(KindEditDraft, payload, prefixEditDraft)

	case strings.HasPrefix(payload, prefixAddMore):
		return requestAction(KindAddMore, payload, prefixAddMore)

	case strings.HasPrefix(payload, prefixReplyToClient):
		return replyAction(KindReplyToClient, payload, prefixReplyToClient)

	case strings.HasPrefix(payload, prefixSendToClient):
		return replyAction(KindSendToClient, payload, prefixSendToClient)

	case strings.HasPrefix(payload, prefixEditReply):
		return replyAction(KindEditReply, payload, prefixEditReply)
	}

	return Action{}, fmt.Errorf("%w: unknown action in %q", ErrBadPayload, payload)
}

func requestAction(kind Kind, payload, prefix string) (Action, error) {
	requestID := strings.TrimPrefix(payload, prefix)
	if requestID == "" || strings.Contains(requestID, "_") {
		return Action{}, fmt.Errorf("%w: bad request id in %q", ErrBadPayload, payload)
	}
	return Action{Kind: kind, RequestID: requestID}, nil
}

func replyAction(kind Kind, payload, prefix string) (Action, error) {
	rest := strings.TrimPrefix(payload, prefix)
	parts := strings.Split(rest, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Action{}, fmt.Errorf("%w: expected client and request ids in %q", ErrBadPayload, payload)
	}
	clientID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Action{}, fmt.Errorf("%w: bad client id in %q", ErrBadPayload, payload)
	}
	return Action{Kind: kind, ClientID: clientID, RequestID: parts[1]}, nil
}

// NewRequestPayload returns the payload for the main menu "new request" button.
func NewRequestPayload() string { return payloadNewRequest }

// AboutPayload returns the payload for the main menu "about" button.
func AboutPayload() string { return payloadAbout }

// ChooseBranchPayload returns the payload for a branch selection button.
func ChooseBranchPayload(branch string) string {
	return prefixChooseBranch + branch
}

// ConfirmSendPayload returns the payload for the draft "send" button.
func ConfirmSendPayload(requestID string) string {
	return prefixConfirmSend + requestID
}

// EditDraftPayload returns the payload for the draft "edit" button.
func EditDraftPayload(requestID string) string {
	return prefixEditDraft + requestID
}

// AddMorePayload returns the payload for the draft "add more" button.
func AddMorePayload(requestID string) string {
	return prefixAddMore + requestID
}

// ReplyToClientPayload returns the payload for the staff "reply" button.
func ReplyToClientPayload(clientID int64, requestID string) string {
	return fmt.Sprintf("%s%d_%s", prefixReplyToClient, clientID, requestID)
}

// SendToClientPayload returns the payload for the reply preview "send" button.
func SendToClientPayload(clientID int64, requestID string) string {
	return fmt.Sprintf("%s%d_%s", prefixSendToClient, clientID, requestID)
}

// EditReplyPayload returns the payload for the reply preview "edit" button.
func EditReplyPayload(clientID int64, requestID string) string {
	return fmt.Sprintf("%s%d_%s", prefixEditReply, clientID, requestID)
}
