package services

import (
	"askpaul-backend/internal/auth"
	"askpaul-backend/internal/config"
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Custom errors for auth service. Their text is shown to the user verbatim.
var (
	ErrUserAlreadyExists  = errors.New("User already registered")
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("Email not confirmed")
	ErrInvalidToken       = errors.New("Confirmation link is invalid or has already been used")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
	ErrCreatingUser       = errors.New("failed to create user")
	ErrValidation         = errors.New("input validation failed")
)

// SignupPendingMessage is returned after a successful sign-up.
const SignupPendingMessage = "Check your email to confirm your account, then log in."

// Mailer delivers confirmation links.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, link string) error
}

// LogMailer writes confirmation links to the server log instead of sending mail.
type LogMailer struct{}

func (LogMailer) SendConfirmation(_ context.Context, email, link string) error {
	log.Printf("[Mailer] Confirmation link for %s: %s", email, link)
	return nil
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *models.User
	Profile     *models.Profile
}

type AuthService struct {
	store  store.Store
	cfg    *config.Config
	mailer Mailer
	now    func() time.Time
}

func NewAuthService(s store.Store, cfg *config.Config, mailer Mailer) *AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AuthService{
		store:  s,
		cfg:    cfg,
		mailer: mailer,
		now:    time.Now,
	}
}

// Signup creates an unconfirmed user with a profile and sends the confirmation link.
func (s *AuthService) Signup(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password cannot be empty", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Error checking user existence for %s: %v", email, err)
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		log.Printf("Error hashing password for %s: %v", email, err)
		return nil, ErrHashingPassword
	}

	token, err := auth.NewConfirmationToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreatingUser, err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:                uuid.New(),
		Email:             email,
		HashedPassword:    hashedPassword,
		ConfirmationToken: &token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	profile := &models.Profile{
		ID:        user.ID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUserWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		log.Printf("Error creating user for %s: %v", email, err)
		return nil, fmt.Errorf("%w: %v", ErrCreatingUser, err)
	}

	link := fmt.Sprintf("%s/v1/auth/confirm?token=%s", s.cfg.PublicURL, url.QueryEscape(token))
	if err := s.mailer.SendConfirmation(ctx, email, link); err != nil {
		// The account exists; the user can ask for support to resend.
		log.Printf("WARN [AuthService] Failed to send confirmation to %s: %v", email, err)
	}

	log.Printf("Successfully signed up user %s (ID: %s), confirmation pending", email, user.ID)
	return user, nil
}

// Confirm consumes a confirmation token.
func (s *AuthService) Confirm(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.store.ConfirmUserEmail(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to confirm email: %w", err)
	}
	log.Printf("Confirmed email for user %s", user.ID)
	return user, nil
}

// Login verifies user credentials and returns an access token, the user and their profile.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Printf("Error retrieving user %s during login: %v", email, err)
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.HashedPassword) {
		return nil, ErrInvalidCredentials
	}
	if !user.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}

	token, expiresAt, err := auth.NewAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		log.Printf("Error generating JWT for user %s (ID: %s): %v", email, user.ID, err)
		return nil, ErrCreatingToken
	}

	profile, err := s.store.GetProfile(ctx, user.ID)
	if err != nil {
		// Profile is personalization only.
		log.Printf("WARN [AuthService] No profile for user %s: %v", user.ID, err)
		profile = nil
	}

	log.Printf("Successfully logged in user %s (ID: %s)", email, user.ID)
	return &Session{AccessToken: token, ExpiresAt: expiresAt, User: user, Profile: profile}, nil
}

// Logout revokes the session identified by the token's jti.
func (s *AuthService) Logout(ctx context.Context, claims *auth.CustomClaims) error {
	expiresAt := s.now().Add(s.cfg.TokenExpiration)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.store.RevokeToken(ctx, claims.ID, claims.UserID, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	log.Printf("Logged out user %s (jti %s)", claims.UserID, claims.ID)
	return nil
}

// IsRevoked reports whether a token id was signed out.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.store.IsTokenRevoked(ctx, jti)
}

// GetProfile returns the user's profile, or store.ErrNotFound.
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}
