package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"

	"mockmate/models"
)

// ErrUnauthenticated is returned when a request carries no valid session.
var ErrUnauthenticated = errors.New("unauthenticated")

// SessionVerifier is the part of the Firebase auth client used for session
// cookies. *auth.Client implements it.
type SessionVerifier interface {
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	VerifySessionCookieAndCheckRevoked(ctx context.Context, sessionCookie string) (*auth.Token, error)
}

// UserStore loads user profiles.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// AuthService resolves the signed-in user from a session cookie.
type AuthService struct {
	verifier SessionVerifier
	users    UserStore
	maxAge   time.Duration
	log      zerolog.Logger
}

func NewAuthService(verifier SessionVerifier, users UserStore, maxAge time.Duration, log zerolog.Logger) *AuthService {
	return &AuthService{verifier: verifier, users: users, maxAge: maxAge, log: log}
}

// MaxAge is the lifetime of the session cookies this service creates.
func (s *AuthService) MaxAge() time.Duration {
	return s.maxAge
}

// CreateSession exchanges a Firebase ID token for a session cookie value.
func (s *AuthService) CreateSession(ctx context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", fmt.Errorf("empty id token: %w", ErrUnauthenticated)
	}
	cookie, err := s.verifier.SessionCookie(ctx, idToken, s.maxAge)
	if err != nil {
		s.log.Warn().Err(err).Msg("create session cookie")
		return "", fmt.Errorf("create session: %w", ErrUnauthenticated)
	}
	return cookie, nil
}

// CurrentUser returns the user a session cookie belongs to.
func (s *AuthService) CurrentUser(ctx context.Context, sessionCookie string) (*models.User, error) {
	if sessionCookie == "" {
		return nil, ErrUnauthenticated
	}
	token, err := s.verifier.VerifySessionCookieAndCheckRevoked(ctx, sessionCookie)
	if err != nil {
		s.log.Debug().Err(err).Msg("invalid session cookie")
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetUser(ctx, token.UID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user %s: %w", token.UID, err)
	}
	return user, nil
}
