// Package api provides a client for the fintrack REST API.
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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theirongolddev/fintrack/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	userAgent      = "github.com/theirongolddev/fintrack/1.0"
)

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the remote finance API.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	tokens  TokenSource
	log     *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("api: parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("api: base url %q has no host", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithTokens returns a copy of the client whose authenticated calls use ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	c2 := *c
	c2.tokens = ts
	return &c2
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for a user record carrying a bearer token.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.UserRecord, error) {
	const op = "login"

	status, body, err := c.do(ctx, op, http.MethodPost, "/api/auth/login", creds, false)
	if err != nil {
		return model.UserRecord{}, err
	}

	var resp loginResponse
	decodeErr := json.Unmarshal(body, &resp)

	if status >= 500 {
		return model.UserRecord{}, &NetworkError{Op: op, StatusCode: status, Err: errors.New(http.StatusText(status))}
	}
	if decodeErr != nil && status >= 200 && status < 300 {
		return model.UserRecord{}, &NetworkError{Op: op, StatusCode: status, Err: fmt.Errorf("decoding response: %w", decodeErr)}
	}
	if !resp.ok() || status >= 300 {
		msg := resp.Message
		if msg == "" {
			msg = "Invalid email or password."
		}
		return model.UserRecord{}, &AuthError{Op: op, Message: msg, Err: ErrInvalidCredentials}
	}
	if resp.Token == "" {
		return model.UserRecord{}, &AuthError{Op: op, Message: "login succeeded but no token was issued", Err: ErrInvalidCredentials}
	}

	return resp.userRecord(creds.Email), nil
}

// Register creates an account and returns the server's confirmation message.
func (c *Client) Register(ctx context.Context, reg model.Registration) (string, error) {
	const op = "register"

	req := registerRequest{Name: reg.Name, Email: reg.Email, Password: reg.Password}
	status, body, err := c.do(ctx, op, http.MethodPost, "/api/auth/register", req, false)
	if err != nil {
		return "", err
	}
	if status >= 500 {
		return "", &NetworkError{Op: op, StatusCode: status, Err: errors.New(http.StatusText(status))}
	}

	var resp statusResponse
	_ = json.Unmarshal(body, &resp)
	if !resp.ok() || status >= 300 {
		msg := resp.Message
		if msg == "" {
			msg = "Registration failed."
		}
		return "", &AuthError{Op: op, Message: msg, Err: ErrInvalidCredentials}
	}
	return resp.Message, nil
}

// ListExpenses fetches every expense of the logged-in user.
func (c *Client) ListExpenses(ctx context.Context) ([]model.FinancialRecord, error) {
	return c.list(ctx, "list expenses", "/api/expenses")
}

// ListIncomes fetches every income of the logged-in user.
func (c *Client) ListIncomes(ctx context.Context) ([]model.FinancialRecord, error) {
	return c.list(ctx, "list incomes", "/api/incomes")
}

// AddExpense posts a new expense.
func (c *Client) AddExpense(ctx context.Context, r model.NewRecord) (model.FinancialRecord, error) {
	return c.create(ctx, "add expense", "/api/expenses", newRecordRequest(r))
}

// AddIncome posts a new income. Any category on r is ignored.
func (c *Client) AddIncome(ctx context.Context, r model.NewRecord) (model.FinancialRecord, error) {
	req := newRecordRequest(r)
	req.Category = ""
	return c.create(ctx, "add income", "/api/incomes", req)
}

// Add dispatches on the record kind.
func (c *Client) Add(ctx context.Context, r model.NewRecord) (model.FinancialRecord, error) {
	if r.Kind == model.KindIncome {
		return c.AddIncome(ctx, r)
	}
	return c.AddExpense(ctx, r)
}

func (c *Client) list(ctx context.Context, op, path string) ([]model.FinancialRecord, error) {
	status, body, err := c.do(ctx, op, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(op, status); err != nil {
		return nil, err
	}

	var records []model.FinancialRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &NetworkError{Op: op, StatusCode: status, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return records, nil
}

func (c *Client) create(ctx context.Context, op, path string, req recordRequest) (model.FinancialRecord, error) {
	status, body, err := c.do(ctx, op, http.MethodPost, path, req, true)
	if err != nil {
		return model.FinancialRecord{}, err
	}
	if err := checkStatus(op, status); err != nil {
		return model.FinancialRecord{}, err
	}

	// Echo the request back when the server answers with an envelope
	// instead of the stored record.
	var created model.FinancialRecord
	if err := json.Unmarshal(body, &created); err != nil || created.Name == "" {
		return req.record(), nil
	}
	return created, nil
}

func checkStatus(op string, status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &AuthError{Op: op, Err: ErrUnauthorized}
	case status < 200 || status >= 300:
		return &NetworkError{Op: op, StatusCode: status, Err: fmt.Errorf("unexpected status %d", status)}
	}
	return nil
}

// do performs a request and returns the status and a size-limited body.
// Authenticated calls fail locally, without a request, when no token is available.
func (c *Client) do(ctx context.Context, op, method, path string, in any, authed bool) (int, []byte, error) {
	var token string
	if authed {
		if c.tokens == nil {
			return 0, nil, ErrNotAuthenticated
		}
		t, err := c.tokens.Token()
		if err != nil {
			return 0, nil, err
		}
		if t == "" {
			return 0, nil, ErrNotAuthenticated
		}
		token = t
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("api: %s: encoding request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("api: %s: creating request: %w", op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugw("request failed", "op", op, "request_id", requestID, "error", err)
		return 0, nil, &NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.log.Debugw("request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
		"request_id", requestID,
	)
	return resp.StatusCode, body, nil
}
