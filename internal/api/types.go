package api

import "github.com/clinicbridge/clinic-bot/internal/conversation"

// EventRequest is one inbound chat event from the transport. Text carries a
// free-text message, Choice a button callback; at most one is set.
type EventRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text,omitempty"`
	Choice string `json:"choice,omitempty"`
}

// DocumentResponse carries an attached file, base64-encoded.
type DocumentResponse struct {
	Filename   string `json:"filename"`
	ContentB64 string `json:"content_b64"`
}

// ReplyResponse is the engine's rendering instruction for the transport.
type ReplyResponse struct {
	Text     string                `json:"text"`
	Buttons  []conversation.Button `json:"buttons,omitempty"`
	Document *DocumentResponse     `json:"document,omitempty"`
	End      bool                  `json:"end,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
