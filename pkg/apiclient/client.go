// Package apiclient is a JSON-over-HTTP client that attaches the current
// bearer token to every request.
//
// The token may be swapped or cleared at any time from any goroutine.
// Requests already in flight keep the credential they started with.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/pkg/requestid"
)

const (
	maxBodySize    = 64 * 1024
	maxBodyExcerpt = 200
)

// Client issues authorized JSON requests against a base URL.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	token      atomic.Pointer[oauth2.Token]
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// New creates a client for baseURL, e.g. "http://localhost:5000/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}
	c := &Client{
		base:       u,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  "fundkit/1.0",
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("apiclient"))
	return c, nil
}

// SetToken makes every subsequent request carry "Authorization: Bearer <token>".
// An empty token is the same as ClearToken.
func (c *Client) SetToken(token string) {
	if token == "" {
		c.ClearToken()
		return
	}
	c.token.Store(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// ClearToken removes the credential from subsequent requests.
func (c *Client) ClearToken() {
	c.token.Store(nil)
}

// Token returns the current bearer token or "".
func (c *Client) Token() string {
	if t := c.token.Load(); t != nil {
		return t.AccessToken
	}
	return ""
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// Do sends in as a JSON body (when non-nil) and decodes a 2xx body into out
// (when non-nil). Failures are *EncodeError, *NetworkError, *HTTPStatusError
// or *DecodeError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &EncodeError{Method: method, Path: path, Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token.Load(); tok != nil {
		tok.SetAuthHeader(req)
	}
	requestid.Propagate(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed",
			slog.String("method", method), slog.String("path", path), logger.Error(err))
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.DebugContext(ctx, "request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		logger.Duration(time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return &HTTPStatusError{
			Method:  method,
			Path:    path,
			Code:    resp.StatusCode,
			Message: extractMessage(raw),
			Body:    sanitize(raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Method: method, Path: path, Err: err}
	}
	return nil
}

func (c *Client) resolve(path string) string {
	u := *c.base
	p, query, _ := strings.Cut(path, "?")
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(p, "/")
	u.RawQuery = query
	return u.String()
}

func extractMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// sanitize flattens and truncates a body for error messages and logs.
// The cut never splits a UTF-8 sequence.
func sanitize(raw []byte) string {
	s := strings.ReplaceAll(string(raw), "\n", " ")
	if len(s) <= maxBodyExcerpt {
		return s
	}
	n := maxBodyExcerpt
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
