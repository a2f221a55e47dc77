// Package isg talks to the web interface of an ISG gate/light controller.
//
// The controller has no API: the client signs in through the same form the
// web UI uses, scrapes the session token out of the configuration page and
// replays it on command requests. Session expiry is only visible as a
// literal "Restricted Access" response body, at which point the client
// signs in again and retries the command once.
package isg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"isg-light-terminal/pkg/core"
)

const (
	loginPath   = "/index.php"
	commandPath = "/isg/light.php"

	// restrictedBody is the controller's way of saying the session token
	// is no longer valid. It is plain text, not an HTTP status.
	restrictedBody = "Restricted Access"

	// maxResponseSize bounds how much of a command response we read. The
	// controller answers with a single digit or a short error string.
	maxResponseSize = 4 * 1024

	DefaultTimeout = 30 * time.Second
)

var (
	// ErrRestricted is returned when the controller still rejects the
	// session after a fresh login.
	ErrRestricted = errors.New("controller rejected session (restricted access)")

	// ErrUnexpectedResponse is returned when the command response is
	// neither a confirmation digit nor the restricted marker.
	ErrUnexpectedResponse = errors.New("device did not respond")
)

// Config carries everything needed to reach one controller. Credentials are
// fixed at construction and never persisted.
type Config struct {
	Name     string
	Hostname string
	Username string
	Password string
	Timeout  time.Duration
}

// Client drives a single light behind an ISG controller. The zero value is
// not usable; construct with NewClient.
type Client struct {
	name     string
	baseURL  *url.URL
	username string
	password string
	http     *http.Client

	mu        sync.RWMutex
	token     string
	loginGen  uint64
	commanded bool

	// loginMu serializes login exchanges so concurrent expiry detections
	// trigger one re-login, not several.
	loginMu sync.Mutex
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("controller hostname is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("controller credentials are required")
	}

	base, err := url.Parse("http://" + cfg.Hostname)
	if err != nil {
		return nil, fmt.Errorf("invalid hostname %q: %w", cfg.Hostname, err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Hostname
	}

	return &Client{
		name:     name,
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}, nil
}

// Name returns the display name of the controlled light.
func (c *Client) Name() string {
	return c.name
}

// Token returns the current session token, empty until a successful login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// On reports the last commanded state. It never touches the network and may
// disagree with the physical light if the last command failed.
func (c *Client) On() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commanded
}

// Identify is a no-op hook for host frameworks that want to flag the
// accessory.
func (c *Client) Identify() {
	core.Logger.Info().Str("light", c.name).Msg("Identify requested")
}

// Login signs in to the controller and refreshes the session token. Cookie
// jar contents are replaced by whatever the controller sets; on failure the
// token keeps its previous value.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.login(ctx)
}

// refreshSession re-logs-in unless another caller already did so while we
// were waiting for the lock.
func (c *Client) refreshSession(ctx context.Context, seenGen uint64) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	c.mu.RLock()
	gen := c.loginGen
	c.mu.RUnlock()
	if gen != seenGen {
		return nil
	}

	return c.login(ctx)
}

// login must be called with loginMu held.
func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"login":          {c.username},
		"pass":           {c.password},
		"send-login":     {"Sign in"},
		"sesion-abierta": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL.JoinPath(loginPath).String(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: HTTP %d", resp.StatusCode)
	}

	token, err := c.fetchToken(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = token
	c.loginGen++
	c.mu.Unlock()

	core.Logger.Info().Str("light", c.name).Msg("Logged in, session token refreshed")
	return nil
}

// fetchToken loads the configuration page and scrapes the session token out
// of its markup.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	configURL := c.baseURL.JoinPath(loginPath)
	configURL.RawQuery = "op=config"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("configuration page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("configuration page: HTTP %d", resp.StatusCode)
	}

	token, err := extractToken(resp.Body)
	if err != nil {
		return "", err
	}

	core.Logger.Debug().Str("light", c.name).Msg("Session token found in configuration page")
	return token, nil
}

// CheckSession verifies that the controller still serves the session token
// on the configuration page, without issuing a light command.
func (c *Client) CheckSession(ctx context.Context) error {
	_, err := c.fetchToken(ctx)
	return err
}

// SetOn commands the light. The cached state is updated optimistically
// before the request goes out, so On reflects the caller's intent even when
// the controller misbehaves. On a "Restricted Access" response the client
// logs in again and retries exactly once.
func (c *Client) SetOn(ctx context.Context, on bool) error {
	c.mu.Lock()
	c.commanded = on
	c.mu.Unlock()

	// One original attempt plus one retry after a re-login.
	const retryBudget = 1

	for attempt := 0; ; attempt++ {
		c.mu.RLock()
		token := c.token
		gen := c.loginGen
		c.mu.RUnlock()

		body, err := c.activate(ctx, on, token)
		if err != nil {
			return err
		}

		switch body {
		case lightParam(on):
			core.Logger.Info().Str("light", c.name).Bool("on", on).Msg("Light state confirmed")
			return nil
		case restrictedBody:
			if attempt >= retryBudget {
				return ErrRestricted
			}
			core.Logger.Warn().Str("light", c.name).Msg("Session expired, logging in again")
			if err := c.refreshSession(ctx, gen); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w (body %q)", ErrUnexpectedResponse, truncate(body, 64))
		}
	}
}

// activate performs one command request and returns the trimmed response
// body.
func (c *Client) activate(ctx context.Context, on bool, token string) (string, error) {
	cmdURL := c.baseURL.JoinPath(commandPath)
	query := url.Values{
		"op":       {"activate"},
		"light":    {lightParam(on)},
		"webtoken": {token},
	}
	cmdURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cmdURL.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("light command failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("reading light command response: %w", err)
	}

	return strings.TrimSpace(string(body)), nil
}

// lightParam maps the requested state to the controller's own numbering.
// The controller confirms a command by echoing this digit back. The mapping
// is a device constant verified empirically; some firmware revisions invert
// it.
func lightParam(on bool) string {
	if on {
		return "0"
	}
	return "1"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
