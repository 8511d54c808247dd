package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/idp"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	DefaultSessionTTL = 8 * time.Hour
	DefaultLoginTTL   = 10 * time.Minute
)

var (
	// ErrUnauthorized means the caller has no live session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStateMismatch means the callback's state was missing, did not match
	// the browser's login binding, or had no pending login behind it.
	ErrStateMismatch = errors.New("state_mismatch")
)

// AuthFailedError reports a callback the provider or the browser aborted
// before any token exchange took place.
type AuthFailedError struct {
	Code        string
	Description string
}

func (e *AuthFailedError) Error() string {
	if e.Description == "" {
		return "authorization failed: " + e.Code
	}
	return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
}

// LogoutScope selects what a logout removes.
type LogoutScope string

const (
	// LogoutScopeSession removes only the caller's session.
	LogoutScopeSession LogoutScope = "session"

	// LogoutScopeAll empties the session store. It races with logins that
	// complete concurrently and is only meant for single user deployments.
	LogoutScopeAll LogoutScope = "all"
)

// IdentityProvider is the subset of *idp.Client the login flow depends on.
type IdentityProvider interface {
	AuthCodeURL(state, nonce, verifier string) string
	ExchangeCode(ctx context.Context, code, verifier string) (*idp.TokenResponse, error)
	VerifiesIDTokens() bool
	VerifyIDToken(ctx context.Context, raw, nonce string) (*idp.IDTokenClaims, error)
	FetchUserinfo(ctx context.Context, accessToken string) (map[string]any, error)
	LogoutURL() string
}

// AuthFlowService drives a browser from anonymous, through the provider's
// authorization endpoint, to an authenticated session and back out again.
type AuthFlowService struct {
	Store       store.Store
	IdP         IdentityProvider
	SessionTTL  time.Duration
	LoginTTL    time.Duration
	LogoutScope LogoutScope

	// Now defaults to time.Now.
	Now func() time.Time
}

// LoginRedirect is where /login sends the browser, and the state it must
// bind to the browser so /callback can check it.
type LoginRedirect struct {
	URL       string
	State     string
	ExpiresAt time.Time
}

// CallbackRequest carries the query parameters of /callback plus the state
// remembered in the browser's login cookie.
type CallbackRequest struct {
	Code             string
	State            string
	BindingState     string
	Error            string
	ErrorDescription string
}

func (s *AuthFlowService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthFlowService) sessionTTL() time.Duration {
	if s.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return s.SessionTTL
}

func (s *AuthFlowService) loginTTL() time.Duration {
	if s.LoginTTL <= 0 {
		return DefaultLoginTTL
	}
	return s.LoginTTL
}

// InitiateLogin records a pending login with fresh state, nonce and PKCE
// verifier, and returns the provider authorization URL.
func (s *AuthFlowService) InitiateLogin(ctx context.Context) (*LoginRedirect, error) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	now := s.now()
	pending := domain.PendingLogin{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: verifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.loginTTL()),
	}
	if err := s.Store.PendingLogins().Save(ctx, pending); err != nil {
		return nil, fmt.Errorf("save pending login: %w", err)
	}

	return &LoginRedirect{
		URL:       s.IdP.AuthCodeURL(state, nonce, verifier),
		State:     state,
		ExpiresAt: pending.ExpiresAt,
	}, nil
}

// HandleCallback completes a login. On success the new session has been
// stored. Any error leaves the store without a new session.
//
// Errors:
//   - *AuthFailedError when the provider reported an error or no code came back
//   - ErrStateMismatch when the state does not bind to a pending login
//   - *idp.TokenExchangeError when the exchange or ID token check fails
//   - anything else is a store failure
func (s *AuthFlowService) HandleCallback(ctx context.Context, req CallbackRequest) (*domain.Session, error) {
	log := slogx.FromContext(ctx)

	if req.Error != "" {
		return nil, &AuthFailedError{Code: req.Error, Description: req.ErrorDescription}
	}
	if req.Code == "" {
		return nil, &AuthFailedError{Code: "invalid_request", Description: "missing authorization code"}
	}

	if req.State == "" || !cryptox.TokensEqual(req.State, req.BindingState) {
		log.Warn("callback state does not match login binding", "has_state", req.State != "", "has_binding", req.BindingState != "")
		return nil, ErrStateMismatch
	}

	pending, err := s.Store.PendingLogins().Take(ctx, req.State)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("callback state has no pending login")
		return nil, ErrStateMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("take pending login: %w", err)
	}

	tok, err := s.IdP.ExchangeCode(ctx, req.Code, pending.CodeVerifier)
	if err != nil {
		var exErr *idp.TokenExchangeError
		if errors.As(err, &exErr) {
			return nil, exErr
		}
		return nil, &idp.TokenExchangeError{Err: err}
	}

	if tok.IDToken != "" && s.IdP.VerifiesIDTokens() {
		if _, err := s.IdP.VerifyIDToken(ctx, tok.IDToken, pending.Nonce); err != nil {
			log.Warn("id token rejected", "error", err)
			return nil, &idp.TokenExchangeError{
				Code:        "invalid_id_token",
				Description: err.Error(),
				Err:         err,
			}
		}
	}

	profile, err := s.IdP.FetchUserinfo(ctx, tok.AccessToken)
	if err != nil {
		log.Warn("userinfo fetch failed, continuing with empty profile", "error", err)
		profile = nil
	}
	if profile == nil {
		profile = map[string]any{}
	}

	id, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now()
	sess := domain.Session{
		ID:          id,
		AccessToken: tok.AccessToken,
		IDToken:     tok.IDToken,
		Profile:     profile,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL()),
	}
	if err := s.Store.Sessions().Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Info("login completed", slog.Bool("id_token", sess.IDToken != ""), slog.Int("profile_claims", len(profile)))
	return &sess, nil
}

// GetUserinfo returns the profile stored with the session. The provider is
// not contacted again.
func (s *AuthFlowService) GetUserinfo(ctx context.Context, sessionID string) (map[string]any, error) {
	if sessionID == "" {
		return nil, ErrUnauthorized
	}

	sess, err := s.Store.Sessions().Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess.Profile == nil {
		return map[string]any{}, nil
	}
	return sess.Profile, nil
}

// Logout removes the caller's session, or every session under
// LogoutScopeAll, and returns the provider logout URL. It is idempotent: an
// empty or unknown session id still yields the same URL.
func (s *AuthFlowService) Logout(ctx context.Context, sessionID string) (string, error) {
	logoutURL := s.IdP.LogoutURL()

	switch {
	case s.LogoutScope == LogoutScopeAll:
		if err := s.Store.Sessions().Clear(ctx); err != nil {
			return logoutURL, fmt.Errorf("clear sessions: %w", err)
		}
		slogx.FromContext(ctx).Info("all sessions cleared on logout")
	case sessionID != "":
		if err := s.Store.Sessions().Delete(ctx, sessionID); err != nil {
			return logoutURL, fmt.Errorf("delete session: %w", err)
		}
	}

	return logoutURL, nil
}

// DiscardSession deletes a session the browser never received, such as one
// whose cookie could not be issued.
func (s *AuthFlowService) DiscardSession(ctx context.Context, sessionID string) error {
	if err := s.Store.Sessions().Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("discard session: %w", err)
	}
	return nil
}
