// Package action_test tests the callback payload grammar.
package action_test

import (
	"errors"
	"testing"

	"github.com/edgard/intakebot/internal/action"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    action.Action
		wantErr bool
	}{
		{
			name:    "new request",
			payload: "new_request",
			want:    action.Action{Kind: action.KindNewRequest},
		},
		{
			name:    "about",
			payload: "about_bot",
			want:    action.Action{Kind: action.KindAbout},
		},
		{
			name:    "choose branch",
			payload: "branch_riverside",
			want:    action.Action{Kind: action.KindChooseBranch, Branch: "riverside"},
		},
		{
			name:    "choose branch empty name",
			payload: "branch_",
			wantErr: true,
		},
		{
			name:    "confirm send",
			payload: "confirm_send_204931",
			want:    action.Action{Kind: action.KindConfirmSend, RequestID: "204931"},
		},
		{
			name:    "confirm send missing id",
			payload: "confirm_send_",
			wantErr: true,
		},
		{
			name:    "edit draft",
			payload: "edit_message_204931",
			want:    action.Action{Kind: action.KindEditDraft, RequestID: "204931"},
		},
		{
			name:    "add more",
			payload: "add_more_204931",
			want:    action.Action{Kind: action.KindAddMore, RequestID: "204931"},
		},
		{
			name:    "reply to client",
			payload: "reply-to-client_5512345_204931",
			want:    action.Action{Kind: action.KindReplyToClient, ClientID: 5512345, RequestID: "204931"},
		},
		{
			name:    "send to client",
			payload: "send-to-client_5512345_204931",
			want:    action.Action{Kind: action.KindSendToClient, ClientID: 5512345, RequestID: "204931"},
		},
		{
			name:    "edit reply",
			payload: "edit-response_5512345_204931",
			want:    action.Action{Kind: action.KindEditReply, ClientID: 5512345, RequestID: "204931"},
		},
		{
			name:    "reply with non-numeric client id",
			payload: "reply-to-client_alice_204931",
			wantErr: true,
		},
		{
			name:    "reply with missing request id",
			payload: "reply-to-client_5512345_",
			wantErr: true,
		},
		{
			name:    "reply with too many fields",
			payload: "send-to-client_5512345_204931_extra",
			wantErr: true,
		},
		{
			name:    "unknown tag",
			payload: "self_destruct",
			wantErr: true,
		},
		{
			name:    "empty payload",
			payload: "",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := action.Parse(tc.payload)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %+v, want error", tc.payload, got)
				}
				if !errors.Is(err, action.ErrBadPayload) {
					t.Errorf("Parse(%q) error = %v, want ErrBadPayload", tc.payload, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) returned unexpected error: %v", tc.payload, err)
			}
			if got != tc.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tc.payload, got, tc.want)
			}
		})
	}
}

// TestPayloadRoundTrip checks that every payload builder produces a string
// Parse decodes back to the same action.
func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    action.Action
	}{
		{"new request", action.NewRequestPayload(), action.Action{Kind: action.KindNewRequest}},
		{"about", action.AboutPayload(), action.Action{Kind: action.KindAbout}},
		{"choose branch", action.ChooseBranchPayload("downtown"), action.Action{Kind: action.KindChooseBranch, Branch: "downtown"}},
		{"confirm send", action.ConfirmSendPayload("381920"), action.Action{Kind: action.KindConfirmSend, RequestID: "381920"}},
		{"edit draft", action.EditDraftPayload("381920"), action.Action{Kind: action.KindEditDraft, RequestID: "381920"}},
		{"add more", action.AddMorePayload("381920"), action.Action{Kind: action.KindAddMore, RequestID: "381920"}},
		{"reply to client", action.ReplyToClientPayload(42, "381920"), action.Action{Kind: action.KindReplyToClient, ClientID: 42, RequestID: "381920"}},
		{"send to client", action.SendToClientPayload(42, "381920"), action.Action{Kind: action.KindSendToClient, ClientID: 42, RequestID: "381920"}},
		{"edit reply", action.EditReplyPayload(42, "381920"), action.Action{Kind: action.KindEditReply, ClientID: 42, RequestID: "381920"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := action.Parse(tc.payload)
			if err != nil {
				t.Fatalf("Parse(%q) returned unexpected error: %v", tc.payload, err)
			}
			if got != tc.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tc.payload, got, tc.want)
			}
		})
	}
}
