package portalsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Session is an authenticated portal session.
type Session struct {
	client *Client
	cookie *http.Cookie

	// LandingURL is where /callback redirected the browser.
	LandingURL string
}

// Cookie returns the session cookie presented on each request.
func (s *Session) Cookie() *http.Cookie { return s.cookie }

// Userinfo calls GET /userinfo and returns the stored profile.
func (s *Session) Userinfo(ctx context.Context) (map[string]any, error) {
	profile := map[string]any{}
	if err := s.client.getJSON(ctx, "/userinfo", []*http.Cookie{s.cookie}, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Logout calls GET /logout and returns the identity provider logout URL the
// portal redirected to.
func (s *Session) Logout(ctx context.Context) (string, error) {
	resp, err := s.client.doRequest(ctx, "/logout", []*http.Cookie{s.cookie})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(resp.Body)
		return "", parseErrorResponse(resp, body)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("portal: /logout answered without a redirect")
	}
	return location, nil
}
