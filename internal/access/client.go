package access

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const (
	defaultRequestTimeout = 10 * time.Second

	// sessionMargin re-logs in this long before the token expires.
	sessionMargin = time.Minute

	// defaultSessionLifetime applies when the token carries no exp claim.
	defaultSessionLifetime = time.Hour

	maxResponseSize = 8 << 20

	tokenCookie   = "TOKEN"
	csrfHeader    = "X-CSRF-Token"
	csrfRefreshed = "X-Updated-CSRF-Token"
)

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Address is the controller host name or IP.
	Address  string
	Username string
	Password string

	// BaseURL overrides https://<Address>. Used by tests.
	BaseURL string

	// Timeout bounds each HTTP request. Default 10s.
	Timeout time.Duration

	Logger Logger
}

// Client talks to one access controller.
type Client struct {
	base     *url.URL
	username string
	password string
	timeout  time.Duration
	logger   Logger
	tls      *tls.Config

	mu     sync.Mutex
	http   *http.Client
	csrf   string
	expiry time.Time
	stats  Stats
	now    func() time.Time
}

// NewClient creates a client. It does not contact the controller.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Address == "" || opts.Username == "" || opts.Password == "" {
		return nil, ErrNotConfigured
	}

	raw := opts.BaseURL
	if raw == "" {
		raw = "https://" + opts.Address
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing controller url: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{
		base:     base,
		username: opts.Username,
		password: opts.Password,
		timeout:  timeout,
		logger:   logger,
		// Controllers ship self-signed certificates.
		tls: &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}, //nolint:gosec // self-signed controller certificates
		now: time.Now,
	}
	c.http = c.newHTTPClient()

	return c, nil
}

func (c *Client) newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // New never fails with nil options
	return &http.Client{
		Jar:     jar,
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig:     c.tls,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Address returns the controller host.
func (c *Client) Address() string {
	return c.base.Host
}

// Login authenticates and stores the session.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"username":   c.username,
		"password":   c.password,
		"rememberMe": true,
		"token":      "",
	})
	if err != nil {
		return fmt.Errorf("encoding login: %w", err)
	}

	c.mu.Lock()
	client := c.http
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(loginPath), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		c.countFailure()
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize)) //nolint:errcheck // drain only

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.countFailure()
		return ErrAuthFailed
	}
	if !c.ResponseOK(resp.StatusCode) {
		c.countFailure()
		return fmt.Errorf("%w: login status %d", ErrBadResponse, resp.StatusCode)
	}

	var token string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == tokenCookie {
			token = cookie.Value
		}
	}
	if token == "" {
		c.countFailure()
		return fmt.Errorf("%w: no session token", ErrAuthFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.csrf = resp.Header.Get(csrfHeader)
	c.expiry = c.tokenExpiry(token)
	c.stats.Logins++
	c.stats.LastLogin = c.now().Unix()

	c.logger.Debug("logged in to controller", "address", c.base.Host, "expires", c.expiry)
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature.
func (c *Client) tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return c.now().Add(defaultSessionLifetime)
}

// SessionValid reports whether a login is current.
func (c *Client) SessionValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionValidLocked()
}

func (c *Client) sessionValidLocked() bool {
	return !c.expiry.IsZero() && c.now().Add(sessionMargin).Before(c.expiry)
}

func (c *Client) ensureSession(ctx context.Context) error {
	if c.SessionValid() {
		return nil
	}
	return c.Login(ctx)
}

// Bootstrap fetches the full controller state.
func (c *Client) Bootstrap(ctx context.Context) (*Bootstrap, error) {
	resp, err := c.Retrieve(ctx, bootstrapPath, RequestOptions{Method: http.MethodGet})
	if err != nil {
		return nil, fmt.Errorf("fetching bootstrap: %w", err)
	}
	if !c.ResponseOK(resp.StatusCode) {
		return nil, fmt.Errorf("%w: bootstrap status %d", ErrBadResponse, resp.StatusCode)
	}

	var boot Bootstrap
	if err := decodeEnvelope(resp.Body, &boot); err != nil {
		return nil, fmt.Errorf("decoding bootstrap: %w", err)
	}
	return &boot, nil
}

// Unlock releases a device relay for duration.
func (c *Client) Unlock(ctx context.Context, device Device, duration UnlockDuration) error {
	body, err := UnlockBody(duration)
	if err != nil {
		return err
	}

	resp, err := c.Retrieve(ctx, relayUnlockEndpoint(device.ID), RequestOptions{Method: http.MethodPut, Body: body})
	if err != nil {
		return fmt.Errorf("unlocking %s: %w", device.DisplayName(), err)
	}
	if !c.ResponseOK(resp.StatusCode) {
		return fmt.Errorf("%w: unlock status %d", ErrCommandFailed, resp.StatusCode)
	}
	if err := decodeEnvelope(resp.Body, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}
	return nil
}

// UnlockBody returns the request body for a relay or location unlock of
// the given duration.
func UnlockBody(duration UnlockDuration) (map[string]any, error) {
	body := map[string]any{}
	switch {
	case duration == UnlockDefault:
	case duration == UnlockIndefinite:
		body["relay_duration"] = -1
	case duration >= 0:
		body["relay_duration"] = int(duration)
	default:
		return nil, fmt.Errorf("invalid unlock duration %d", duration)
	}
	return body, nil
}

// Retrieve performs an authenticated request against endpoint. A non-2xx
// status is returned in the Response, not as an error.
func (c *Client) Retrieve(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	client := c.http
	if c.csrf != "" {
		req.Header.Set(csrfHeader, c.csrf)
	}
	c.stats.Requests++
	c.mu.Unlock()

	resp, err := client.Do(req)
	if err != nil {
		c.countFailure()
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.countFailure()
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.mu.Lock()
	if v := resp.Header.Get(csrfRefreshed); v != "" {
		c.csrf = v
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Force a fresh login on the next call.
		c.expiry = time.Time{}
	}
	if !c.ResponseOK(resp.StatusCode) {
		c.stats.Failures++
	}
	c.mu.Unlock()

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// ResponseOK reports whether status is a success code.
func (c *Client) ResponseOK(status int) bool {
	return status >= 200 && status < 300
}

// Reset drops the session and zeroes the statistics.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.http.CloseIdleConnections()
	c.http = c.newHTTPClient()
	c.csrf = ""
	c.expiry = time.Time{}
	c.stats = Stats{}
}

// Stats returns a copy of the activity counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Listen reads the notification stream and calls fn for every packet until
// ctx is cancelled or the connection fails. It always returns a non-nil error.
func (c *Client) Listen(ctx context.Context, fn func(Packet)) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	wsURL := *c.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = notificationPath

	c.mu.Lock()
	header := http.Header{}
	if c.csrf != "" {
		header.Set(csrfHeader, c.csrf)
	}
	var cookies []string
	for _, ck := range c.http.Jar.Cookies(c.base) {
		cookies = append(cookies, ck.Name+"="+ck.Value)
	}
	c.mu.Unlock()
	if len(cookies) > 0 {
		header.Set("Cookie", strings.Join(cookies, "; "))
	}

	dialer := websocket.Dialer{
		TLSClientConfig:  c.tls,
		HandshakeTimeout: c.timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.mu.Lock()
			c.expiry = time.Time{}
			c.mu.Unlock()
		}
		return fmt.Errorf("connecting to event stream: %w", err)
	}
	defer conn.Close()

	c.logger.Debug("event stream connected", "address", c.base.Host)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() //nolint:errcheck // unblocks ReadMessage
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading event stream: %w", err)
		}

		text := strings.TrimSpace(string(data))
		if text == "" || text == `"Hello"` || text == "Hello" {
			continue
		}

		var pkt Packet
		if err := json.Unmarshal(data, &pkt); err != nil {
			c.logger.Debug("ignoring malformed event packet", "error", err)
			continue
		}
		if pkt.Event == "" {
			continue
		}

		c.mu.Lock()
		c.stats.Packets++
		c.mu.Unlock()

		fn(pkt)
	}
}

func (c *Client) url(endpoint string) string {
	return strings.TrimSuffix(c.base.String(), "/") + endpoint
}

func (c *Client) countFailure() {
	c.mu.Lock()
	c.stats.Failures++
	c.mu.Unlock()
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// decodeEnvelope checks the response code and decodes data into out when
// out is non-nil.
func decodeEnvelope(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if env.Code != "SUCCESS" {
		if env.Msg != "" {
			return fmt.Errorf("%w: %s: %s", ErrBadResponse, env.Code, env.Msg)
		}
		return fmt.Errorf("%w: code %q", ErrBadResponse, env.Code)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Join(ErrBadResponse, err)
	}
	return nil
}
