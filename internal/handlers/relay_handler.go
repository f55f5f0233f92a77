package handlers

import (
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/relay"
	"askpaul-backend/pkg/httputil"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

const (
	errMessagesRequired = "Messages array is required"
	errRelayFailed      = "Failed to get response from Paul"
)

// Completer is the part of the relay used by the HTTP edge.
type Completer interface {
	Complete(ctx context.Context, turns []models.Turn, p relay.Personalization) (relay.Completion, error)
}

type RelayHandler struct {
	relay Completer
}

func NewRelayHandler(c Completer) *RelayHandler {
	return &RelayHandler{relay: c}
}

// HandleChat handles POST /chat. Registered with HandleFunc so other methods
// reach it and get a JSON 405 instead of the router's plain-text one.
func (h *RelayHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httputil.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	defer r.Body.Close()

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	raw := bytes.TrimSpace(req.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		httputil.RespondError(w, http.StatusBadRequest, errMessagesRequired)
		return
	}

	var turns []models.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Messages must be a list of {role, content} objects")
		return
	}

	var p relay.Personalization
	if req.UserName != nil {
		p.Name = *req.UserName
	}

	completion, err := h.relay.Complete(r.Context(), turns, p)
	if err != nil {
		if errors.Is(err, relay.ErrInvalidInput) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR [RelayHandler] Chat completion failed: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, errRelayFailed)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.ChatResponse{Message: completion.Text})
}
