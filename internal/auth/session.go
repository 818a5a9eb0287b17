package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidInput marks local validation failures. Operations returning it
// have made no network call.
var ErrInvalidInput = errors.New("invalid input")

// State is the session lifecycle: Unknown at process start until the first
// status check resolves it one way or the other.
type State string

const (
	StateUnknown         State = "unknown"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Identity is the signed-in user as seen by the rest of the service.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// credentials carries the local validation rules: the email only has to
// contain "@" and "." and the password needs six characters. Deliberately
// loose; tightening the email rule would lock out accounts that already
// exist.
type credentials struct {
	Email    string `validate:"required,contains=@,contains=."`
	Password string `validate:"required,min=6"`
}

type resetRequest struct {
	Email string `validate:"required,contains=@,contains=."`
}

// Session wraps the remote auth provider behind the sign-in/sign-up/
// sign-out/reset contract and tracks the current identity. All state
// transitions are serialized by a mutex.
type Session struct {
	provider Provider
	validate *validator.Validate
	logger   *zap.Logger

	redirectURL string

	mu       sync.Mutex
	state    State
	identity *Identity
	token    string
}

func NewSession(provider Provider, redirectURL string, logger *zap.Logger) *Session {
	return &Session{
		provider:    provider,
		validate:    validator.New(),
		logger:      logger,
		redirectURL: redirectURL,
		state:       StateUnknown,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the signed-in identity, or nil when unauthenticated.
func (s *Session) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// CheckStatus asks the provider whether the held session is still valid.
// Any failure, including "no session held", lands in Unauthenticated; the
// UX does not distinguish the two.
func (s *Session) CheckStatus(ctx context.Context) State {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		s.setUnauthenticated()
		return StateUnauthenticated
	}

	user, err := s.provider.GetUser(ctx, token)
	if err != nil {
		s.logger.Debug("Session check failed", zap.Error(err))
		s.setUnauthenticated()
		return StateUnauthenticated
	}

	s.setAuthenticated(user, token)
	return StateAuthenticated
}

// SignUp registers a new account. A provider response without a session
// (confirmation-required flow) triggers an immediate sign-in attempt; if
// that also fails the user from the sign-up response is still marked
// authenticated. That optimistic last step is wrong for
// confirmation-required accounts; the next status check corrects it.
func (s *Session) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validationMessage(err))
	}

	result, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		s.setUnauthenticated()
		return nil, categorizeSignUpError(err)
	}

	if result.Session != nil {
		s.setAuthenticated(&result.Session.User, result.Session.AccessToken)
		return s.Identity(), nil
	}

	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.logger.Warn("Post-sign-up sign-in failed, keeping sign-up identity", zap.Error(err))
		s.setAuthenticated(&result.User, "")
		return s.Identity(), nil
	}

	s.setAuthenticated(&session.User, session.AccessToken)
	return s.Identity(), nil
}

// SignIn exchanges credentials for a session.
func (s *Session) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validationMessage(err))
	}

	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.setUnauthenticated()
		return nil, categorizeSignInError(err)
	}

	s.setAuthenticated(&session.User, session.AccessToken)
	return s.Identity(), nil
}

// SignOut clears the identity only when the provider confirms; on failure
// the session is left intact and the error surfaces.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if err := s.provider.SignOut(ctx, token); err != nil {
		return err
	}

	s.setUnauthenticated()
	return nil
}

// ResetPassword validates locally then fires the reset request. Success
// produces no confirmation payload.
func (s *Session) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validate.Struct(resetRequest{Email: email}); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, validationMessage(err))
	}

	if err := s.provider.Recover(ctx, email, s.redirectURL); err != nil {
		if isNetworkWording(err) {
			return errors.New("Network error. Please check your connection.")
		}
		return errors.New("Failed to send reset email. Please try again.")
	}
	return nil
}

func (s *Session) setAuthenticated(user *ProviderUser, token string) {
	identity := &Identity{Email: user.Email}
	if id, err := uuid.Parse(user.ID); err == nil {
		identity.UserID = id
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.identity = identity
	s.token = token
	s.mu.Unlock()
}

func (s *Session) setUnauthenticated() {
	s.mu.Lock()
	s.state = StateUnauthenticated
	s.identity = nil
	s.token = ""
	s.mu.Unlock()
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Email":
			return "please enter a valid email address"
		case "Password":
			return "password must be at least 6 characters"
		}
	}
	return "invalid input"
}

// The provider reports errors as free text, so the user-facing category is
// chosen by substring matching. Brittle against wording changes; there is
// no structured code to match on instead.
func categorizeSignInError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid login credentials"),
		strings.Contains(msg, "invalid"),
		strings.Contains(msg, "email not found"),
		strings.Contains(msg, "user not found"):
		return errors.New("Invalid email or password. Please check your credentials and try again.")
	case isNetworkWording(err):
		return errors.New("Network error. Please check your connection.")
	default:
		return fmt.Errorf("sign in failed: %w", err)
	}
}

func categorizeSignUpError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already registered"),
		strings.Contains(msg, "already exists"):
		return errors.New("An account with this email already exists. Please sign in instead.")
	case isNetworkWording(err):
		return errors.New("Network error. Please check your connection.")
	default:
		return fmt.Errorf("failed to create account: %w", err)
	}
}

func isNetworkWording(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "network") || strings.Contains(msg, "connection")
}
