// Package api is the client for the admin REST backend. Every response uses
// the {success, data, message, errors} envelope; failures surface as *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

// TokenSource supplies the bearer token for authenticated requests. An empty
// token sends the request anonymously.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns the same token.
func StaticToken(token string) TokenSource {
	return TokenFunc(func(context.Context) (string, error) { return token, nil })
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-request timeout. The HTTP client is copied so a
// shared client passed through WithHTTPClient keeps its own timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			clone := *c.http
			clone.Timeout = timeout
			c.http = &clone
		}
	}
}

// WithTokenSource authenticates requests.
func WithTokenSource(source TokenSource) Option {
	return func(c *Client) {
		c.tokens = source
	}
}

// WithUnauthorized registers a hook run when the backend answers 401, e.g.
// to drop the persisted session.
func WithUnauthorized(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the backend rooted at a base URL.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
	logger         *zap.Logger
}

// New returns a Client for baseURL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the configured root.
func (c *Client) BaseURL() string { return c.baseURL }

// Get fetches path with query and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

// Do performs one request. out may be nil when the data is not needed.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.resolve(path, query)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, target, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("api: token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("api: read %s %s: %w", method, target, err)
	}
	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	var env envelope
	decoded := len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &env) == nil

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Method: method, URL: target, StatusCode: resp.StatusCode}
		if decoded {
			apiErr.Message = env.Message
			apiErr.Fields = decodeFieldErrors(env.Errors)
		}
		if apiErr.Message == "" && len(apiErr.Fields) == 0 {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return apiErr
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if !decoded {
		return &Error{Method: method, URL: target, StatusCode: resp.StatusCode, Message: "response is not valid JSON"}
	}
	if env.Success != nil && !*env.Success {
		return &Error{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Message:    env.Message,
			Fields:     decodeFieldErrors(env.Errors),
		}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, target, err)
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

// decodeFieldErrors accepts {"field": ["msg"]}, {"field": "msg"} and
// [{"field": "f", "message": "msg"}].
func decodeFieldErrors(raw json.RawMessage) map[string][]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err == nil {
		out := make(map[string][]string, len(generic))
		for field, value := range generic {
			switch typed := value.(type) {
			case string:
				out[field] = append(out[field], typed)
			case []any:
				for _, item := range typed {
					if msg, ok := item.(string); ok {
						out[field] = append(out[field], msg)
					}
				}
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}

	var list []struct {
		Field   string `json:"field"`
		Path    string `json:"path"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make(map[string][]string, len(list))
		for _, item := range list {
			field := item.Field
			if field == "" {
				field = item.Path
			}
			if field == "" || item.Message == "" {
				continue
			}
			out[field] = append(out[field], item.Message)
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}

// ErrNoToken is returned by Login when the backend accepted the credentials
// but sent no token.
var ErrNoToken = errors.New("api: login response has no token")

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var data struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
	}
	if err := c.Post(ctx, "/auth/login", map[string]string{"username": username, "password": password}, &data); err != nil {
		return "", err
	}
	token := data.Token
	if token == "" {
		token = data.AccessToken
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Logout invalidates the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, "/auth/logout", nil, nil)
}

// ChangePassword submits the change-password form.
func (c *Client) ChangePassword(ctx context.Context, values map[string]any) error {
	return c.Post(ctx, "/auth/change-password", values, nil)
}
