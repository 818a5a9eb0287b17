package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ProviderUser is the identity record the auth provider returns.
type ProviderUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProviderSession is an authenticated session issued by the provider.
type ProviderSession struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         ProviderUser `json:"user"`
}

// SignUpResult covers both provider flows: immediate session, or user-only
// when email confirmation is required.
type SignUpResult struct {
	Session *ProviderSession
	User    ProviderUser
}

// Provider is the remote auth contract the session facade depends on.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*ProviderSession, error)
	SignOut(ctx context.Context, accessToken string) error
	Recover(ctx context.Context, email, redirectTo string) error
	GetUser(ctx context.Context, accessToken string) (*ProviderUser, error)
}

// HTTPProvider talks to a GoTrue-style auth endpoint (the API Supabase
// exposes under /auth/v1).
type HTTPProvider struct {
	baseURL string
	anonKey string
	client  *http.Client
	logger  *zap.Logger
}

type ProviderConfig struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

func NewHTTPProvider(cfg ProviderConfig, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		anonKey: cfg.AnonKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type providerErrorBody struct {
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b providerErrorBody) message() string {
	switch {
	case b.ErrorDescription != "":
		return b.ErrorDescription
	case b.Msg != "":
		return b.Msg
	case b.Error != "":
		return b.Error
	}
	return ""
}

func (p *HTTPProvider) do(ctx context.Context, method, path, accessToken string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding auth request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.anonKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody providerErrorBody
		_ = json.Unmarshal(data, &errBody)
		msg := errBody.message()
		if msg == "" {
			msg = fmt.Sprintf("auth provider returned status %d", resp.StatusCode)
		}
		p.logger.Warn("Auth provider error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return fmt.Errorf("%s", msg)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding auth response: %w", err)
		}
	}
	return nil
}

// SignUp registers a new user. When the provider requires email
// confirmation it returns the user without a session.
func (p *HTTPProvider) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	payload := map[string]string{"email": email, "password": password}

	// Confirmation-required responses carry the bare user, immediate-session
	// responses carry the session with the user embedded.
	var data json.RawMessage
	if err := p.do(ctx, http.MethodPost, "/signup", "", payload, &data); err != nil {
		return nil, err
	}

	var session ProviderSession
	if err := json.Unmarshal(data, &session); err == nil && session.AccessToken != "" {
		return &SignUpResult{Session: &session, User: session.User}, nil
	}

	var user ProviderUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decoding sign-up response: %w", err)
	}
	return &SignUpResult{User: user}, nil
}

// SignIn exchanges credentials for a session.
func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*ProviderSession, error) {
	payload := map[string]string{"email": email, "password": password}

	var session ProviderSession
	if err := p.do(ctx, http.MethodPost, "/token?grant_type=password", "", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SignOut revokes the session's tokens.
func (p *HTTPProvider) SignOut(ctx context.Context, accessToken string) error {
	return p.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// Recover sends a password-reset email.
func (p *HTTPProvider) Recover(ctx context.Context, email, redirectTo string) error {
	payload := map[string]string{"email": email}
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + redirectTo
	}
	return p.do(ctx, http.MethodPost, path, "", payload, nil)
}

// GetUser fetches the identity behind an access token, validating the
// session in the process.
func (p *HTTPProvider) GetUser(ctx context.Context, accessToken string) (*ProviderUser, error) {
	var user ProviderUser
	if err := p.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
