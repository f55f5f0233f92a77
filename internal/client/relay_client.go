package client

import (
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/relay"
	"context"
	"errors"
	"net/http"
)

// RelayClient calls POST /chat. It satisfies session.Completer.
type RelayClient struct {
	api apiClient
}

func NewRelayClient(baseURL string, hc *http.Client) *RelayClient {
	return &RelayClient{api: newAPIClient(baseURL, hc)}
}

type chatRequest struct {
	Messages []models.Turn `json:"messages"`
	UserName string        `json:"userName,omitempty"`
}

// Complete sends the history to the server. A request that never got an HTTP
// response is reported as a transport failure.
func (c *RelayClient) Complete(ctx context.Context, turns []models.Turn, p relay.Personalization) (relay.Completion, error) {
	if err := relay.ValidateTurns(turns); err != nil {
		return relay.Completion{}, err
	}

	var resp models.ChatResponse
	err := c.api.do(ctx, http.MethodPost, "/chat", "", chatRequest{Messages: turns, UserName: p.Name}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return relay.Completion{}, &relay.ProviderError{Err: err}
		}
		return relay.Completion{}, &relay.ProviderError{Err: err, Transport: true}
	}
	return relay.Completion{Text: resp.Message, Empty: resp.Message == ""}, nil
}
