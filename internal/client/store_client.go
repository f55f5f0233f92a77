package client

import (
	"askpaul-backend/internal/models"
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// StoreClient is the conversation store over the server's /v1 API.
// Without a token every call returns an empty result and no error.
type StoreClient struct {
	api    apiClient
	tokens TokenSource
}

func NewStoreClient(baseURL string, hc *http.Client, tokens TokenSource) *StoreClient {
	return &StoreClient{api: newAPIClient(baseURL, hc), tokens: tokens}
}

func (s *StoreClient) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	token := s.tokens.Token()
	if token == "" {
		return []models.Conversation{}, nil
	}
	var resp models.ListConversationsResponse
	if err := s.api.do(ctx, http.MethodGet, "/v1/conversations", token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Conversation, 0, len(resp.Conversations))
	for _, c := range resp.Conversations {
		out = append(out, c.Conversation())
	}
	return out, nil
}

func (s *StoreClient) CreateConversation(ctx context.Context, firstMessage string) (*models.Conversation, error) {
	token := s.tokens.Token()
	if token == "" {
		return nil, nil
	}
	var resp models.ConversationResponse
	req := models.CreateConversationRequest{FirstMessage: firstMessage}
	if err := s.api.do(ctx, http.MethodPost, "/v1/conversations", token, req, &resp); err != nil {
		return nil, err
	}
	c := resp.Conversation()
	return &c, nil
}

func (s *StoreClient) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	token := s.tokens.Token()
	if token == "" {
		return nil
	}
	return s.api.do(ctx, http.MethodDelete, "/v1/conversations/"+id.String(), token, nil, nil)
}

func (s *StoreClient) ListMessages(ctx context.Context, id uuid.UUID) ([]models.Message, error) {
	token := s.tokens.Token()
	if token == "" {
		return []models.Message{}, nil
	}
	var resp models.ListMessagesResponse
	if err := s.api.do(ctx, http.MethodGet, "/v1/conversations/"+id.String()+"/messages", token, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, m.Message())
	}
	return out, nil
}

func (s *StoreClient) AppendMessage(ctx context.Context, id uuid.UUID, role models.Role, content string) (*models.Message, error) {
	token := s.tokens.Token()
	if token == "" {
		return nil, nil
	}
	var resp models.MessageRowResponse
	req := models.AppendMessageRequest{Role: role, Content: content}
	if err := s.api.do(ctx, http.MethodPost, "/v1/conversations/"+id.String()+"/messages", token, req, &resp); err != nil {
		return nil, err
	}
	m := resp.Message()
	return &m, nil
}

// GetProfile returns nil when signed out or when the user has no profile.
func (s *StoreClient) GetProfile(ctx context.Context) (*models.Profile, error) {
	token := s.tokens.Token()
	if token == "" {
		return nil, nil
	}
	var resp models.ProfileResponse
	if err := s.api.do(ctx, http.MethodGet, "/v1/profile", token, nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &models.Profile{ID: resp.ID, Name: resp.Name}, nil
}
