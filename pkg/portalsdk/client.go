package portalsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a client for the portal's public endpoints.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a portal client. Redirects are never followed.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Readiness calls GET /readyz. A degraded portal answers 503, which is
// returned as an *APIError.
func (c *Client) Readiness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/readyz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Forecast calls GET /forecast and returns the relayed upstream document.
func (c *Client) Forecast(ctx context.Context) (json.RawMessage, error) {
	var doc json.RawMessage
	if err := c.getJSON(ctx, "/forecast", nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// BeginLogin calls GET /login and captures the identity provider redirect.
func (c *Client) BeginLogin(ctx context.Context) (*LoginStart, error) {
	resp, err := c.doRequest(ctx, "/login", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(resp.Body)
		return nil, parseErrorResponse(resp, body)
	}

	start := &LoginStart{AuthorizeURL: resp.Header.Get("Location")}
	for _, ck := range resp.Cookies() {
		if ck.Name == LoginCookieName {
			start.LoginCookie = ck
		}
	}
	if start.AuthorizeURL == "" || start.LoginCookie == nil {
		return nil, fmt.Errorf("portal: /login answered without redirect or login cookie")
	}
	return start, nil
}

// CompleteCallback replays the identity provider's redirect to /callback and
// returns a Session holding the issued cookie.
func (c *Client) CompleteCallback(ctx context.Context, query url.Values, loginCookie *http.Cookie) (*Session, error) {
	var cookies []*http.Cookie
	if loginCookie != nil {
		cookies = append(cookies, loginCookie)
	}

	resp, err := c.doRequest(ctx, "/callback?"+query.Encode(), cookies)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(resp.Body)
		return nil, parseErrorResponse(resp, body)
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookieName && ck.Value != "" {
			return &Session{client: c, cookie: ck, LandingURL: resp.Header.Get("Location")}, nil
		}
	}
	return nil, fmt.Errorf("portal: /callback answered without a session cookie")
}

// NewSession wraps an existing session cookie value.
func (c *Client) NewSession(cookieValue string) *Session {
	return &Session{client: c, cookie: &http.Cookie{Name: SessionCookieName, Value: cookieValue}}
}
