package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	"github.com/clinicbridge/clinic-bot/internal/conversation"
)

// Engine is the conversation surface the transport adapter drives.
type Engine interface {
	HandlePatient(ctx context.Context, ev conversation.Event) (conversation.Reply, error)
	HandleDoctor(ctx context.Context, ev conversation.Event) (conversation.Reply, error)
}

func patientEventHandler(engine Engine) http.HandlerFunc {
	return eventHandler(engine.HandlePatient)
}

func doctorEventHandler(engine Engine) http.HandlerFunc {
	return eventHandler(engine.HandleDoctor)
}

func eventHandler(handle func(context.Context, conversation.Event) (conversation.Reply, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.ChatID == "" {
			writeError(w, http.StatusBadRequest, "missing_chat_id", "chat_id is required")
			return
		}

		reply, err := handle(r.Context(), conversation.Event{
			ChatID: req.ChatID,
			Text:   req.Text,
			Choice: req.Choice,
		})
		if err != nil {
			log.Printf("event handling error chat_id=%s: %v", req.ChatID, err)
			writeError(w, http.StatusInternalServerError, "internal_error", "event could not be processed")
			return
		}

		resp := ReplyResponse{
			Text:    reply.Text,
			Buttons: reply.Buttons,
			End:     reply.End,
		}
		if reply.Document != nil {
			resp.Document = &DocumentResponse{
				Filename:   reply.Document.Filename,
				ContentB64: base64.StdEncoding.EncodeToString(reply.Document.Content),
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
