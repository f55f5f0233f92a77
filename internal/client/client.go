// Package client talks to the Ask Paul server on behalf of the terminal app.
package client

import (
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/session"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	_ session.Completer         = (*RelayClient)(nil)
	_ session.ConversationStore = (*StoreClient)(nil)
	_ session.Authenticator     = (*AuthClient)(nil)
	_ TokenSource               = (*AuthClient)(nil)
)

// APIError is a non-2xx response. Message is the server's {error} text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// TokenSource yields the current bearer token, or "" when signed out.
type TokenSource interface {
	Token() string
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, hc *http.Client) apiClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return apiClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// Transport failures are returned as-is; HTTP failures as *APIError.
func (c apiClient) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
