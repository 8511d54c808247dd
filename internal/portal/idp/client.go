// Package idp is the portal's view of its OpenID Connect identity provider:
// discovery, the authorization URL, the code exchange, ID token verification
// and the userinfo call.
package idp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds every call to the provider.
const DefaultHTTPTimeout = 10 * time.Second

// Config is immutable after startup.
type Config struct {
	// IssuerURL is discovered at {IssuerURL}/.well-known/openid-configuration.
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// LogoutDomain hosts the provider's /logout endpoint.
	LogoutDomain      string
	LogoutRedirectURI string

	// VerifyIDToken enables signature and claim checks on returned ID tokens.
	VerifyIDToken bool

	HTTPTimeout time.Duration
}

// CognitoIssuer builds the issuer URL of an AWS Cognito user pool.
func CognitoIssuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// TokenResponse is the part of a token endpoint answer the portal keeps.
type TokenResponse struct {
	AccessToken string
	IDToken     string // empty when the provider sent none
	TokenType   string
	Expiry      time.Time
}

// IDTokenClaims are the verified claims of an ID token.
type IDTokenClaims struct {
	Issuer  string
	Subject string
	Nonce   string
	Expiry  time.Time
}

// Client talks to one provider. Discovery runs once in New and its result,
// including the JWKS location, is reused for the client's lifetime.
type Client struct {
	cfg        Config
	httpClient *http.Client
	provider   *oidc.Provider
	oauth2     *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	logoutURL  string
	jwksURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for every provider call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New performs discovery and builds a client.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("idp: issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("idp: client id is required")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "email", "phone"}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	provider, err := oidc.NewProvider(c.clientContext(ctx), strings.TrimSuffix(cfg.IssuerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("idp: discovery failed: %w", err)
	}
	c.provider = provider

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	c.oauth2 = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint:     endpoint,
	}

	c.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	c.logoutURL = buildLogoutURL(cfg)

	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil || meta.JWKSURI == "" {
		return nil, errors.New("idp: discovery document has no jwks_uri")
	}
	c.jwksURL = meta.JWKSURI

	slog.Debug("identity provider discovered",
		"issuer", cfg.IssuerURL,
		"authorization_endpoint", endpoint.AuthURL,
		"token_endpoint", endpoint.TokenURL,
		"id_token_verification", cfg.VerifyIDToken,
	)

	return c, nil
}

// clientContext makes go-oidc and x/oauth2 use our bounded HTTP client.
func (c *Client) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, c.httpClient)
}

// VerifiesIDTokens reports whether ID tokens are checked locally.
func (c *Client) VerifiesIDTokens() bool { return c.cfg.VerifyIDToken }

// AuthCodeURL builds the authorization redirect carrying state, nonce and the
// S256 PKCE challenge derived from verifier.
func (c *Client) AuthCodeURL(state, nonce, verifier string) string {
	return c.oauth2.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	)
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HTTPTimeout)
	defer cancel()

	tok, err := c.oauth2.Exchange(c.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			exErr := &TokenExchangeError{
				Code:        re.ErrorCode,
				Description: re.ErrorDescription,
				Err:         err,
			}
			if re.Response != nil {
				exErr.StatusCode = re.Response.StatusCode
			}
			if exErr.Code == "" && len(re.Body) > 0 {
				exErr.Description = providerMessage(re.Body)
				exErr.Code = "token_endpoint_error"
			}
			return nil, exErr
		}
		return nil, &TokenExchangeError{Err: err}
	}

	resp := &TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Expiry:      tok.Expiry,
	}
	if raw, ok := tok.Extra("id_token").(string); ok {
		resp.IDToken = raw
	}
	return resp, nil
}

// VerifyIDToken checks signature, issuer, audience and expiry against the
// provider's published keys. A non-empty nonce must match the token's.
func (c *Client) VerifyIDToken(ctx context.Context, raw, nonce string) (*IDTokenClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HTTPTimeout)
	defer cancel()

	tok, err := c.verifier.Verify(c.clientContext(ctx), raw)
	if err != nil {
		return nil, fmt.Errorf("idp: verify id token: %w", err)
	}

	if nonce != "" {
		if tok.Nonce == "" {
			return nil, ErrNonceMissing
		}
		if tok.Nonce != nonce {
			return nil, ErrNonceMismatch
		}
	}

	return &IDTokenClaims{
		Issuer:  tok.Issuer,
		Subject: tok.Subject,
		Nonce:   tok.Nonce,
		Expiry:  tok.Expiry,
	}, nil
}

// FetchUserinfo calls the userinfo endpoint with the access token as bearer
// credential and returns every claim it sent.
func (c *Client) FetchUserinfo(ctx context.Context, accessToken string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HTTPTimeout)
	defer cancel()

	info, err := c.provider.UserInfo(c.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, &UserinfoFetchError{Err: err}
	}

	profile := map[string]any{}
	if err := info.Claims(&profile); err != nil {
		return nil, &UserinfoFetchError{Err: fmt.Errorf("decode claims: %w", err)}
	}
	return profile, nil
}

// LogoutURL is where the browser goes after a local logout.
func (c *Client) LogoutURL() string { return c.logoutURL }

func buildLogoutURL(cfg Config) string {
	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	if cfg.LogoutRedirectURI != "" {
		q.Set("logout_uri", cfg.LogoutRedirectURI)
	}
	return strings.TrimSuffix(cfg.LogoutDomain, "/") + "/logout?" + q.Encode()
}

// Ping checks that the provider still serves the key set ID tokens are
// verified against. It is bounded by the configured HTTP timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("idp: build key set request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("idp: key set unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("idp: key set returned %d", resp.StatusCode)
	}
	return nil
}
