package sdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"finquest/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the FinQuest HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithUser identifies the caller through the X-User-ID header. Servers
// configured with a JWT secret ignore it; use WithAuthToken there.
func WithUser(user string) Option {
	return func(c *Client) {
		if strings.TrimSpace(user) != "" {
			c.headers.Set("X-User-ID", user)
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

func (c *Client) hasIdentity() bool {
	return c.headers.Get("X-User-ID") != "" || c.headers.Get("Authorization") != ""
}

// SendEvent reports ev for the client's user and returns the authoritative result.
func (c *Client) SendEvent(ctx context.Context, ev core.Event) (core.Result, error) {
	if !c.hasIdentity() {
		return core.Result{}, ErrEmptyUserID
	}
	if ev == nil {
		return core.Result{}, &core.ValidationError{Field: "event_type", Reason: "required"}
	}
	if err := ev.Validate(); err != nil {
		return core.Result{}, err
	}
	body, err := core.MarshalEvent(ev)
	if err != nil {
		return core.Result{}, err
	}
	var res core.Result
	if err := c.do(ctx, http.MethodPost, "/gamification/event", body, &res); err != nil {
		return core.Result{}, err
	}
	res.State = res.State.Normalize()
	return res, nil
}

// GetState fetches the current gamification state of the client's user.
func (c *Client) GetState(ctx context.Context) (core.State, error) {
	if !c.hasIdentity() {
		return core.State{}, ErrEmptyUserID
	}
	var st core.State
	if err := c.do(ctx, http.MethodGet, "/gamification/me", nil, &st); err != nil {
		return core.State{}, err
	}
	return st.Normalize(), nil
}

// Badges lists the badge catalog with the user's earned flags.
func (c *Client) Badges(ctx context.Context) ([]BadgeStatus, error) {
	if !c.hasIdentity() {
		return nil, ErrEmptyUserID
	}
	var out []BadgeStatus
	if err := c.do(ctx, http.MethodGet, "/gamification/badges", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Leaderboard returns the n users with the most XP.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leaderboard?n=%d", n), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, target any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

// SubscribeNotices connects to the WebSocket stream and emits the caller's notices.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeNotices(ctx context.Context) (<-chan core.Notice, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	// Unblock ReadJSON when ctx ends.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	out := make(chan core.Notice, 32)
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var n core.Notice
			if err := conn.ReadJSON(&n); err != nil {
				return
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
