package handlers

import (
	"askpaul-backend/internal/auth"
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/services"
	"askpaul-backend/internal/store"
	"askpaul-backend/pkg/httputil"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConversationService defines the conversation operations used by the API.
type ConversationService interface {
	ListConversations(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, ownerID uuid.UUID, firstMessage string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, ownerID, id uuid.UUID) error
	ListMessages(ctx context.Context, ownerID, conversationID uuid.UUID) ([]models.Message, error)
	AppendMessage(ctx context.Context, ownerID, conversationID uuid.UUID, role models.Role, content string) (*models.Message, error)
}

// ConversationHandlers handles HTTP requests related to conversations.
type ConversationHandlers struct {
	svc ConversationService
}

// NewConversationHandlers creates a new ConversationHandlers instance.
func NewConversationHandlers(svc ConversationService) *ConversationHandlers {
	return &ConversationHandlers{svc: svc}
}

func conversationIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return uuid.Nil, false
	}
	return id, true
}

func ownerFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return userID, ok
}

// HandleListConversations handles GET /v1/conversations.
func (h *ConversationHandlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	items, err := h.svc.ListConversations(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR [ConversationHandlers] List for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	resp := models.ListConversationsResponse{Conversations: make([]models.ConversationResponse, 0, len(items))}
	for _, c := range items {
		resp.Conversations = append(resp.Conversations, models.NewConversationResponse(c))
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleCreateConversation handles POST /v1/conversations.
func (h *ConversationHandlers) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	var req models.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	conv, err := h.svc.CreateConversation(r.Context(), userID, req.FirstMessage)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR [ConversationHandlers] Create for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.NewConversationResponse(*conv))
}

// HandleDeleteConversation handles DELETE /v1/conversations/{conversationID}.
func (h *ConversationHandlers) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	convID, ok := conversationIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteConversation(r.Context(), userID, convID); err != nil {
		log.Printf("ERROR [ConversationHandlers] Delete %s for user %s: %v", convID, userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMessages handles GET /v1/conversations/{conversationID}/messages.
func (h *ConversationHandlers) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	convID, ok := conversationIDParam(w, r)
	if !ok {
		return
	}

	msgs, err := h.svc.ListMessages(r.Context(), userID, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("ERROR [ConversationHandlers] List messages of %s: %v", convID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}

	resp := models.ListMessagesResponse{Messages: make([]models.MessageRowResponse, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, models.NewMessageRowResponse(m))
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleAppendMessage handles POST /v1/conversations/{conversationID}/messages.
func (h *ConversationHandlers) HandleAppendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	convID, ok := conversationIDParam(w, r)
	if !ok {
		return
	}

	var req models.AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	msg, err := h.svc.AppendMessage(r.Context(), userID, convID, req.Role, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRole):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
		default:
			log.Printf("ERROR [ConversationHandlers] Append to %s: %v", convID, err)
			httputil.RespondError(w, http.StatusInternalServerError, "Failed to add message")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.NewMessageRowResponse(*msg))
}
