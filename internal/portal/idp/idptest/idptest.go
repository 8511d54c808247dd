// Package idptest runs a small OpenID Connect provider over httptest. It
// implements discovery, the authorization endpoint (auto-approving), the
// token endpoint with PKCE and client secret checks, userinfo and JWKS, and
// can be told to fail any of them.
package idptest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
)

const (
	DefaultClientID     = "portal-client"
	DefaultClientSecret = "portal-secret"
)

type grant struct {
	redirectURI   string
	nonce         string
	codeChallenge string
}

// Server is a running mock provider. Exported fields may be changed between
// requests to steer its behaviour.
type Server struct {
	*httptest.Server

	ClientID     string
	ClientSecret string

	// Profile is returned from the userinfo endpoint.
	Profile map[string]any

	// AccessToken, when set, is issued instead of a random token.
	AccessToken string

	// IDToken, when set, is issued verbatim instead of a signed ID token.
	IDToken string

	// OmitIDToken drops id_token from token responses.
	OmitIDToken bool

	// TokenStatus, UserinfoStatus and JWKSStatus force an error status when non-zero.
	TokenStatus    int
	UserinfoStatus int
	JWKSStatus     int

	// IDTokenNonce overrides the nonce claim of issued ID tokens.
	IDTokenNonce string

	// IDTokenTTL is the lifetime of issued ID tokens.
	IDTokenTTL time.Duration

	signer *jwtx.RS256Signer

	mu       sync.Mutex
	grants   map[string]grant
	accepted map[string]bool

	TokenCalls    atomic.Int32
	UserinfoCalls atomic.Int32
}

// New starts a provider. Callers must Close it.
func New() *Server {
	signer, err := jwtx.GenerateSignerRS256("idptest-1")
	if err != nil {
		panic("idptest: " + err.Error())
	}

	s := &Server{
		ClientID:     DefaultClientID,
		ClientSecret: DefaultClientSecret,
		Profile:      map[string]any{"sub": "user-123", "email": "a@b.com"},
		IDTokenTTL:   time.Hour,
		signer:       signer,
		grants:       make(map[string]grant),
		accepted:     make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", s.handleDiscovery)
	mux.HandleFunc("GET /oauth2/authorize", s.handleAuthorize)
	mux.HandleFunc("POST /oauth2/token", s.handleToken)
	mux.HandleFunc("GET /oauth2/userInfo", s.handleUserinfo)
	mux.HandleFunc("GET /.well-known/jwks.json", s.handleJWKS)
	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.Server = httptest.NewServer(mux)
	return s
}

// Issuer is the issuer URL clients should discover.
func (s *Server) Issuer() string { return s.URL }

// Grant registers an authorization code as if the user had approved a login
// carrying the given nonce and PKCE challenge.
func (s *Server) Grant(code, redirectURI, nonce, codeChallenge string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[code] = grant{redirectURI: redirectURI, nonce: nonce, codeChallenge: codeChallenge}
}

// AcceptAnyCode makes the token endpoint accept code without a prior grant.
// PKCE and nonce are then not checked.
func (s *Server) AcceptAnyCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted[code] = true
}

// SignIDToken signs arbitrary claims with the provider's key.
func (s *Server) SignIDToken(claims jwt.MapClaims) (string, error) {
	return s.signer.Sign(claims)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                s.URL,
		"authorization_endpoint":                s.URL + "/oauth2/authorize",
		"token_endpoint":                        s.URL + "/oauth2/token",
		"userinfo_endpoint":                     s.URL + "/oauth2/userInfo",
		"jwks_uri":                              s.URL + "/.well-known/jwks.json",
		"code_challenge_methods_supported":      []string{"S256"},
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "email", "phone"},
	})
}

// handleAuthorize approves every request and redirects straight back.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != s.ClientID || q.Get("response_type") != "code" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.Scheme == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	code := cryptox.MustGenerateToken(cryptox.TokenSize128)
	s.Grant(code, redirect.String(), q.Get("nonce"), q.Get("code_challenge"))

	back := redirect.Query()
	back.Set("code", code)
	back.Set("state", q.Get("state"))
	redirect.RawQuery = back.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.TokenCalls.Add(1)

	if s.TokenStatus != 0 {
		writeJSON(w, s.TokenStatus, map[string]string{
			"error":             "invalid_grant",
			"error_description": "authorization code is invalid or expired",
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	if r.PostForm.Get("client_id") != s.ClientID || r.PostForm.Get("client_secret") != s.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	code := r.PostForm.Get("code")
	s.mu.Lock()
	g, granted := s.grants[code]
	delete(s.grants, code)
	anyCode := s.accepted[code]
	s.mu.Unlock()

	if !granted && !anyCode {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "unknown authorization code",
		})
		return
	}

	if granted {
		if g.redirectURI != "" && r.PostForm.Get("redirect_uri") != g.redirectURI {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "redirect_uri mismatch"})
			return
		}
		if g.codeChallenge != "" && challengeS256(r.PostForm.Get("code_verifier")) != g.codeChallenge {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "PKCE verification failed"})
			return
		}
	}

	accessToken := s.AccessToken
	if accessToken == "" {
		accessToken = cryptox.MustGenerateToken(cryptox.TokenSize256)
	}

	resp := map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}

	if !s.OmitIDToken {
		idToken := s.IDToken
		if idToken == "" {
			nonce := g.nonce
			if s.IDTokenNonce != "" {
				nonce = s.IDTokenNonce
			}
			now := time.Now()
			signed, err := s.signer.Sign(jwt.MapClaims{
				"iss":   s.URL,
				"sub":   "user-123",
				"aud":   s.ClientID,
				"iat":   now.Unix(),
				"exp":   now.Add(s.IDTokenTTL).Unix(),
				"nonce": nonce,
				"email": s.Profile["email"],
			})
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
				return
			}
			idToken = signed
		}
		resp["id_token"] = idToken
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	s.UserinfoCalls.Add(1)

	if s.UserinfoStatus != 0 {
		writeJSON(w, s.UserinfoStatus, map[string]string{"error": "server_error"})
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}
	writeJSON(w, http.StatusOK, s.Profile)
}

func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	if s.JWKSStatus != 0 {
		writeJSON(w, s.JWKSStatus, map[string]string{"error": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, jwtx.JWKS{Keys: []jwtx.JWK{s.signer.PublicJWK()}})
}

func challengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
