package handlers

import (
	"askpaul-backend/internal/auth"
	api_models "askpaul-backend/internal/models"
	db_models "askpaul-backend/internal/models"
	"askpaul-backend/internal/services"
	"askpaul-backend/internal/store"
	"askpaul-backend/pkg/httputil"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
)

// AuthService defines the interface expected from the auth service.
type AuthService interface {
	Signup(ctx context.Context, email, password, name string) (*db_models.User, error)
	Confirm(ctx context.Context, token string) (*db_models.User, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Logout(ctx context.Context, claims *auth.CustomClaims) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*db_models.Profile, error)
}

type AuthHandler struct {
	authService AuthService
}

func NewAuthHandler(authSvc AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authSvc,
	}
}

// HandleSignup handles the POST /v1/auth/signup request.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req api_models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.authService.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		log.Printf("Signup handler failed for email %s: %v", req.Email, err)
		switch {
		case errors.Is(err, services.ErrUserAlreadyExists):
			httputil.RespondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Signup failed due to an internal error")
		}
		return
	}

	resp := api_models.SignupResponse{
		User:    api_models.UserResponse{ID: user.ID, Email: user.Email},
		Message: services.SignupPendingMessage,
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleConfirm handles GET /v1/auth/confirm?token=..., the link sent after signup.
func (h *AuthHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Confirm handler failed: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Confirmation failed due to an internal error")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, api_models.SignupResponse{
		User:    api_models.UserResponse{ID: user.ID, Email: user.Email},
		Message: "Email confirmed. You can now log in.",
	})
}

// HandleLogin handles the POST /v1/auth/login request.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req api_models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Email == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	sess, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("Login handler failed for email %s: %v", req.Email, err)
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, services.ErrEmailNotConfirmed):
			httputil.RespondError(w, http.StatusForbidden, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "Login failed due to an internal error")
		}
		return
	}

	resp := api_models.AuthResponse{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt,
		User: api_models.UserResponse{
			ID:    sess.User.ID,
			Email: sess.User.Email,
		},
	}
	if sess.Profile != nil {
		resp.Profile = &api_models.ProfileResponse{ID: sess.Profile.ID, Name: sess.Profile.Name}
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleLogout handles POST /v1/auth/logout. Requires the JWT middleware.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaimsFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := h.authService.Logout(r.Context(), claims); err != nil {
		log.Printf("Logout handler failed for user %s: %v", claims.UserID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Logout failed due to an internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetProfile handles GET /v1/profile.
func (h *AuthHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	profile, err := h.authService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Profile not found")
			return
		}
		log.Printf("GetProfile handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, api_models.ProfileResponse{ID: profile.ID, Name: profile.Name})
}
