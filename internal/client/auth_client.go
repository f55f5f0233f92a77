package client

import (
	"askpaul-backend/internal/models"
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
)

// AuthClient signs the user in and out and holds the bearer token.
// It satisfies session.Authenticator and TokenSource.
type AuthClient struct {
	api   apiClient
	cache *TokenCache // optional

	mu    sync.RWMutex
	token string
	email string
}

func NewAuthClient(baseURL string, hc *http.Client, cache *TokenCache) *AuthClient {
	return &AuthClient{api: newAPIClient(baseURL, hc), cache: cache}
}

// Restore loads a still-valid token from the cache. It reports whether one was found.
func (a *AuthClient) Restore() bool {
	if a.cache == nil {
		return false
	}
	token, email, err := a.cache.Load()
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			log.Printf("WARN [AuthClient] Reading token cache: %v", err)
		}
		return false
	}
	a.mu.Lock()
	a.token, a.email = token, email
	a.mu.Unlock()
	return true
}

func (a *AuthClient) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *AuthClient) Email() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.email
}

func (a *AuthClient) Authenticated() bool {
	return a.Token() != ""
}

// Signup registers a new account and returns the server's confirmation notice.
func (a *AuthClient) Signup(ctx context.Context, email, password, name string) (string, error) {
	var resp models.SignupResponse
	req := models.SignupRequest{Email: email, Password: password, Name: name}
	if err := a.api.do(ctx, http.MethodPost, "/v1/auth/signup", "", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Login signs in and caches the token.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := a.api.do(ctx, http.MethodPost, "/v1/auth/login", "", req, &resp); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.token, a.email = resp.AccessToken, resp.User.Email
	a.mu.Unlock()

	if a.cache != nil {
		if err := a.cache.Save(resp.AccessToken, resp.User.Email, resp.ExpiresAt); err != nil {
			log.Printf("WARN [AuthClient] Caching token: %v", err)
		}
	}
	return &resp, nil
}

// Logout forgets the token locally, then asks the server to revoke it.
// The local sign-out happens even when the server call fails.
func (a *AuthClient) Logout(ctx context.Context) error {
	a.mu.Lock()
	token := a.token
	a.token, a.email = "", ""
	a.mu.Unlock()

	if a.cache != nil {
		if err := a.cache.Clear(); err != nil {
			log.Printf("WARN [AuthClient] Clearing token cache: %v", err)
		}
	}
	if token == "" {
		return nil
	}
	return a.api.do(ctx, http.MethodPost, "/v1/auth/logout", token, nil, nil)
}
