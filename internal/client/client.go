// Package client talks to the vauva HTTP API. A Client keeps the session
// cookie between calls and implements voting.Persistence.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vauva/internal/adapters/http/api"
	service "github.com/okian/vauva/internal/app"
	"github.com/okian/vauva/internal/catalog"
	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/pkg/logger"
)

// saveAttempts bounds how often one batch is sent after transport errors.
const saveAttempts = 2

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Client wraps http.Client with a cookie jar and timeout.
type Client struct {
	base   *url.URL
	client *http.Client
	log    logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.client.Transport = rt }
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	c := &Client{
		base:   base,
		client: &http.Client{Jar: jar, Timeout: 10 * time.Second},
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login starts a session for account.
func (c *Client) Login(ctx context.Context, account, password string) error {
	body := map[string]string{"account": account, "password": password}
	return c.do(ctx, http.MethodPost, "/api/login", nil, body, nil, nil)
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) (heart.Account, error) {
	var acc heart.Account
	err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil, nil, &acc)
	return acc, err
}

// User returns the session identity.
func (c *Client) User(ctx context.Context) (heart.Account, error) {
	var acc heart.Account
	err := c.do(ctx, http.MethodGet, "/api/user", nil, nil, nil, &acc)
	return acc, err
}

// Load implements voting.Persistence.
func (c *Client) Load(ctx context.Context) ([]heart.Record, error) {
	var records []heart.Record
	if err := c.do(ctx, http.MethodGet, "/api/hearts", nil, nil, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Save implements voting.Persistence. The batch carries one idempotency key
// so a resend after a lost response is not applied twice.
func (c *Client) Save(ctx context.Context, records []heart.Record) ([]heart.Record, error) {
	header := http.Header{}
	header.Set(api.IdempotencyKeyHeader, uuid.NewString())

	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		var out []heart.Record
		err = c.do(ctx, http.MethodPost, "/api/hearts", nil, records, header, &out)
		if err == nil {
			return out, nil
		}
		var se *StatusError
		if errors.As(err, &se) || ctx.Err() != nil {
			return nil, err
		}
		c.log.Warn(ctx, "save attempt failed", logger.Int("attempt", attempt), logger.Error(err))
	}
	return nil, err
}

// Results returns the server-side aggregation of round.
func (c *Client) Results(ctx context.Context, round int) (service.Results, error) {
	var res service.Results
	q := url.Values{"round": {strconv.Itoa(round)}}
	err := c.do(ctx, http.MethodGet, "/api/results", q, nil, nil, &res)
	return res, err
}

// Names returns one catalog page.
func (c *Client) Names(ctx context.Context, query catalog.Query) (catalog.Page, error) {
	q := url.Values{}
	if query.View != "" {
		q.Set("view", string(query.View))
	}
	if query.Order != "" {
		q.Set("order", string(query.Order))
	}
	if query.Page > 0 {
		q.Set("page", strconv.Itoa(query.Page))
	}
	if query.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(query.PageSize))
	}
	var page catalog.Page
	err := c.do(ctx, http.MethodGet, "/api/names", q, nil, nil, &page)
	return page, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, header http.Header, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug(ctx, "api call",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", time.Since(start)),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil {
			se.Code, se.Message = body.Code, body.Message
		}
		return se
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}
