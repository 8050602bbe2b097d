// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

// Package client calls the signlogin JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
)

// DefaultTimeout bounds each request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// ErrUnauthorized matches any 401 response through errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Is reports whether target is ErrUnauthorized and the status is 401.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TokenSource supplies the bearer token for protected calls. An empty
// token sends the request without credentials.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string { return f() }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets a logger for request debug logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is safe for concurrent use.
type Client struct {
	base      *url.URL
	tokens    TokenSource
	http      *http.Client
	userAgent string
	logger    *slog.Logger
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, oops.Code("CLIENT_INVALID_URL").With("url", baseURL).Wrap(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, oops.Code("CLIENT_INVALID_URL").With("url", baseURL).Errorf("server url must be http(s)://host")
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	c := &Client{
		base:      u,
		tokens:    tokens,
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: "signlogin-client",
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) (*auth.AuthResult, error) {
	var out auth.AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/register", false,
		registerRequest{Name: name, Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	var out auth.AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", false,
		loginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the logged-in user.
func (c *Client) Profile(ctx context.Context) (*auth.Profile, error) {
	var out auth.Profile
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", true, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile sends only the non-nil fields of update.
func (c *Client) UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.Profile, error) {
	var out auth.Profile
	body := updateRequest{Name: update.Name, Email: update.Email, Password: update.Password}
	if err := c.do(ctx, http.MethodPut, "/api/users/profile", true, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Users lists every registered user.
func (c *Client) Users(ctx context.Context) ([]auth.Profile, error) {
	var out []auth.Profile
	if err := c.do(ctx, http.MethodGet, "/api/users", true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, protected bool, in, out any) error {
	req, err := c.newRequest(ctx, method, path, protected, in)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return oops.Code("CLIENT_REQUEST_FAILED").
			With("method", method).
			With("path", path).
			Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return oops.Code("CLIENT_REQUEST_FAILED").
			With("method", method).
			With("path", path).
			With("operation", "read body").
			Wrap(err)
	}
	c.logger.DebugContext(ctx, "api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return oops.Code("CLIENT_DECODE_FAILED").
			With("path", path).
			With("status", resp.StatusCode).
			Wrap(err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, protected bool, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, oops.Code("CLIENT_ENCODE_FAILED").With("path", path).Wrap(err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return nil, oops.Code("CLIENT_REQUEST_FAILED").With("path", path).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if protected {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func apiError(status int, data []byte) *APIError {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.ToLower(http.StatusText(status))
	}
	if body.Message == "" {
		body.Message = "unexpected response"
	}
	return &APIError{Status: status, Message: body.Message}
}
