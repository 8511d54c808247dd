// Package relay performs a single bounded GET against an upstream JSON API
// and hands the body back untouched. It is shared by the portal's /forecast
// route and the standalone weather function.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/aussiebroadwan/portal/pkg/httpx"
)

const (
	// DefaultTimeout bounds the whole upstream round trip.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize caps how much of the upstream body is read.
	DefaultMaxBodySize int64 = 5 << 20
)

// ErrBodyTooLarge is wrapped by UpstreamFetchError when the upstream body exceeds the cap.
var ErrBodyTooLarge = errors.New("upstream body exceeds size limit")

// UpstreamFetchError reports a failed relay attempt. StatusCode is zero when
// no response was received.
type UpstreamFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// Config describes one upstream.
type Config struct {
	URL         string
	Timeout     time.Duration
	MaxBodySize int64
	// Header is added to every upstream request.
	Header http.Header
}

// Relay fetches one upstream resource per call. No retries are attempted.
type Relay struct {
	url         string
	timeout     time.Duration
	maxBodySize int64
	header      http.Header
	client      *http.Client
}

// New creates a Relay. A nil client gets a fresh http.Client; the timeout is
// applied per call through the request context either way.
func New(cfg Config, client *http.Client) (*Relay, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("relay: upstream URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if client == nil {
		client = &http.Client{}
	}

	return &Relay{
		url:         cfg.URL,
		timeout:     cfg.Timeout,
		maxBodySize: cfg.MaxBodySize,
		header:      cfg.Header.Clone(),
		client:      client,
	}, nil
}

// URL returns the upstream this relay targets.
func (r *Relay) URL() string { return r.url }

// Fetch issues exactly one GET and returns the body if the upstream answered
// 2xx with a valid JSON document.
func (r *Relay) Fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, &UpstreamFetchError{URL: r.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// *url.Error repeats the request URL, query credentials included.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, &UpstreamFetchError{URL: r.url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize+1))
	if err != nil {
		return nil, &UpstreamFetchError{URL: r.url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > r.maxBodySize {
		return nil, &UpstreamFetchError{URL: r.url, StatusCode: resp.StatusCode, Err: ErrBodyTooLarge}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamFetchError{URL: r.url, StatusCode: resp.StatusCode, Err: errors.New(statusDetail(resp.StatusCode, body))}
	}

	if !gjson.ValidBytes(body) {
		return nil, &UpstreamFetchError{URL: r.url, StatusCode: resp.StatusCode, Err: errors.New("upstream body is not valid JSON")}
	}

	return body, nil
}

// FetchAndRelay fetches the upstream and writes its body verbatim with status
// 200. On failure nothing is written and the *UpstreamFetchError is returned
// so the caller decides how much of it to expose.
func (r *Relay) FetchAndRelay(ctx context.Context, w http.ResponseWriter) error {
	body, err := r.Fetch(ctx)
	if err != nil {
		return err
	}
	httpx.WriteRawJSON(w, http.StatusOK, body)
	return nil
}

// statusDetail summarises a failed upstream response, preferring a message
// field from a JSON error body over the bare status text.
func statusDetail(code int, body []byte) string {
	detail := http.StatusText(code)
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message", "error_description", "error"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return fmt.Sprintf("%d %s: %s", code, detail, v.String())
			}
		}
	}
	return fmt.Sprintf("%d %s", code, detail)
}
