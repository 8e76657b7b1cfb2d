// Package notify_test tests the notification fan-out rules with fake chat
// and email transports.
package notify_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edgard/intakebot/internal/config"
	"github.com/edgard/intakebot/internal/database"
	"github.com/edgard/intakebot/internal/notify"
)

type textSend struct {
	chatID  int64
	text    string
	buttons []notify.Button
}

type mediaSend struct {
	chatID int64
	items  []notify.MediaItem
}

type fakeChat struct {
	texts []textSend
	media []mediaSend
	err   error
}

func (f *fakeChat) SendText(_ context.Context, chatID int64, text string, buttons []notify.Button) error {
	f.texts = append(f.texts, textSend{chatID: chatID, text: text, buttons: buttons})
	return f.err
}

func (f *fakeChat) SendMediaGroup(_ context.Context, chatID int64, items []notify.MediaItem) error {
	f.media = append(f.media, mediaSend{chatID: chatID, items: items})
	return f.err
}

type emailSend struct {
	subject string
	body    string
	to      string
}

type fakeEmail struct {
	sent []emailSend
	err  error
}

func (f *fakeEmail) Send(_ context.Context, subject, body, to string, _ ...string) error {
	f.sent = append(f.sent, emailSend{subject: subject, body: body, to: to})
	return f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Branches: []config.BranchConfig{
			{Name: "head office", ChatID: -1000, Email: "head@example.com"},
			{Name: "downtown", ChatID: -1001, Email: "downtown@example.com"},
			{Name: "riverside", ChatID: -1002},
		},
		Messages: config.MessagesConfig{
			ReplyToClient: "reply from staff:\n%s",
		},
	}
}

func textRequest(branch string) *database.Request {
	return &database.Request{
		ID:          "204931",
		RequesterID: 42,
		Branch:      sql.NullString{String: branch, Valid: branch != ""},
		CreatedAt:   time.Now().UTC(),
		Items: []database.ContentItem{
			{Kind: database.KindText, Content: "the printer is on fire"},
		},
	}
}

func TestDispatchRequestBranchAndHeadOffice(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	email := &fakeEmail{}
	d := notify.NewDispatcher(chat, email, testConfig(), nil)

	d.DispatchRequest(context.Background(), textRequest("downtown"))

	if len(chat.texts) != 2 {
		t.Fatalf("Text send count = %d, want 2 (branch + head office)", len(chat.texts))
	}

	branchMsg := chat.texts[0]
	if branchMsg.chatID != -1001 {
		t.Errorf("First send went to chat %d, want the branch channel", branchMsg.chatID)
	}
	if !strings.Contains(branchMsg.text, "the printer is on fire") {
		t.Errorf("Branch message %q lacks the request text", branchMsg.text)
	}
	if len(branchMsg.buttons) != 1 || branchMsg.buttons[0].Payload != "reply-to-client_42_204931" {
		t.Errorf("Branch message buttons = %+v, want one reply button", branchMsg.buttons)
	}

	headMsg := chat.texts[1]
	if headMsg.chatID != -1000 {
		t.Errorf("Second send went to chat %d, want head office", headMsg.chatID)
	}
	if len(headMsg.buttons) != 0 {
		t.Errorf("Head office copy has buttons %+v, want none", headMsg.buttons)
	}

	if len(email.sent) != 2 {
		t.Fatalf("Email count = %d, want 2 (branch + head office)", len(email.sent))
	}
	recipients := map[string]bool{email.sent[0].to: true, email.sent[1].to: true}
	if !recipients["downtown@example.com"] || !recipients["head@example.com"] {
		t.Errorf("Email recipients = %v, want branch and head office", recipients)
	}
}

func TestDispatchRequestHeadOfficeDeduplicated(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	email := &fakeEmail{}
	d := notify.NewDispatcher(chat, email, testConfig(), nil)

	d.DispatchRequest(context.Background(), textRequest("head office"))

	if len(chat.texts) != 1 {
		t.Fatalf("Text send count = %d, want 1 (no duplicate copy)", len(chat.texts))
	}
	if chat.texts[0].chatID != -1000 {
		t.Errorf("Send went to chat %d, want head office", chat.texts[0].chatID)
	}
	if len(email.sent) != 1 || email.sent[0].to != "head@example.com" {
		t.Errorf("Emails = %+v, want a single head office mirror", email.sent)
	}
}

func TestDispatchRequestUnknownBranchFallsBack(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	d := notify.NewDispatcher(chat, nil, testConfig(), nil)

	d.DispatchRequest(context.Background(), textRequest("atlantis"))

	if len(chat.texts) != 1 {
		t.Fatalf("Text send count = %d, want 1", len(chat.texts))
	}
	if chat.texts[0].chatID != -1000 {
		t.Errorf("Send went to chat %d, want head office fallback", chat.texts[0].chatID)
	}
}

func TestDispatchRequestMediaOrdering(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	d := notify.NewDispatcher(chat, nil, testConfig(), nil)

	req := textRequest("downtown")
	req.Items = []database.ContentItem{
		{Kind: database.KindPhoto, Content: "photo-1"},
		{Kind: database.KindText, Content: "see attached"},
		{Kind: database.KindVoice, Content: "voice-1"},
	}

	d.DispatchRequest(context.Background(), req)

	if len(chat.media) != 2 {
		t.Fatalf("Media send count = %d, want 2 (branch + head office)", len(chat.media))
	}
	got := chat.media[0].items
	if len(got) != 2 || got[0].FileID != "photo-1" || got[1].FileID != "voice-1" {
		t.Errorf("Media roster = %+v, want photo then voice in stored order", got)
	}
	if len(chat.texts) == 0 || !strings.Contains(chat.texts[0].text, "see attached") {
		t.Errorf("Text block missing from mixed rendering: %+v", chat.texts)
	}
}

func TestDispatchRequestEmailFailureDoesNotBlockChat(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	email := &fakeEmail{err: errors.New("smtp down")}
	d := notify.NewDispatcher(chat, email, testConfig(), nil)

	d.DispatchRequest(context.Background(), textRequest("downtown"))

	if len(chat.texts) != 2 {
		t.Errorf("Text send count = %d with failing email, want 2", len(chat.texts))
	}
}

func TestDispatchRequestNilEmail(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	d := notify.NewDispatcher(chat, nil, testConfig(), nil)

	// Must not panic without an email transport.
	d.DispatchRequest(context.Background(), textRequest("downtown"))

	if len(chat.texts) != 2 {
		t.Errorf("Text send count = %d, want 2", len(chat.texts))
	}
}

func TestDispatchReply(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	email := &fakeEmail{}
	d := notify.NewDispatcher(chat, email, testConfig(), nil)

	req := textRequest("downtown")
	d.DispatchReply(context.Background(), req, "a technician is on the way")

	if len(chat.texts) != 2 {
		t.Fatalf("Text send count = %d, want 2 (client + head office mirror)", len(chat.texts))
	}

	clientMsg := chat.texts[0]
	if clientMsg.chatID != 42 {
		t.Errorf("First send went to chat %d, want the client", clientMsg.chatID)
	}
	if !strings.Contains(clientMsg.text, "a technician is on the way") {
		t.Errorf("Client message %q lacks the reply text", clientMsg.text)
	}

	mirror := chat.texts[1]
	if mirror.chatID != -1000 {
		t.Errorf("Mirror went to chat %d, want head office", mirror.chatID)
	}
	if !strings.Contains(mirror.text, "204931") {
		t.Errorf("Mirror %q lacks the request id", mirror.text)
	}

	if len(email.sent) != 1 || email.sent[0].to != "head@example.com" {
		t.Errorf("Emails = %+v, want one head office mirror", email.sent)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		items []database.ContentItem
		want  []string
	}{
		{
			name:  "empty",
			items: nil,
			want:  []string{"(empty request)"},
		},
		{
			name: "text only",
			items: []database.ContentItem{
				{Kind: database.KindText, Content: "hello"},
			},
			want: []string{"1 message(s)", "text: 1", "hello"},
		},
		{
			name: "mixed",
			items: []database.ContentItem{
				{Kind: database.KindText, Content: "see attached"},
				{Kind: database.KindPhoto, Content: "photo-1"},
				{Kind: database.KindPhoto, Content: "photo-2"},
			},
			want: []string{"3 message(s)", "text: 1", "photo: 2", "see attached"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := notify.Summary(tc.items)
			for _, fragment := range tc.want {
				if !strings.Contains(got, fragment) {
					t.Errorf("Summary = %q, want fragment %q", got, fragment)
				}
			}
		})
	}
}
