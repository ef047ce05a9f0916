// Package apiclient is the HTTP layer in front of the screening REST API.
// It attaches the bearer token and a request id to every call, decodes the
// {success, data, message} envelope, and turns failures into *APIError.
// Network, auth, permission, rate-limit and server failures are announced
// centrally through the notifier; 404 and 422 are left to the caller.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eyescreen/screening/internal/platform/notify"
	"github.com/eyescreen/screening/internal/platform/session"
)

const RequestIDHeader = "X-Request-ID"

// Envelope is the standard response wrapper of the API.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	// OnUnauthorized runs after a 401 has cleared the session. The terminal
	// front end uses it to send the operator back to the login prompt.
	OnUnauthorized func()
}

type Client struct {
	baseURL        *url.URL
	http           *http.Client
	session        *session.Session
	notifier       notify.Notifier
	logger         zerolog.Logger
	onUnauthorized func()
}

func New(cfg Config, sess *session.Session, notifier notify.Notifier, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute, got %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if sess == nil {
		sess = session.New(nil)
	}
	return &Client{
		baseURL:        base,
		http:           hc,
		session:        sess,
		notifier:       notifier,
		logger:         logger,
		onUnauthorized: cfg.OnUnauthorized,
	}, nil
}

// Session returns the session the client reads its token from.
func (c *Client) Session() *session.Session { return c.session }

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Do sends a JSON request and decodes a 2xx body into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// File is one part of a multipart upload.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// PostMultipart uploads file together with plain form fields.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, file File, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}

	field := file.Field
	if field == "" {
		field = "file"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file.Name))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return fmt.Errorf("copy file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) send(req *http.Request, out interface{}) error {
	rid := c.prepare(req)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("request_id", rid).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("latency", time.Since(start)).
			Msg("request failed without response")
		return c.networkError(req.Context(), err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("request_id", rid).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleFailure(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// prepare is the request interceptor.
func (c *Client) prepare(req *http.Request) string {
	rid := req.Header.Get(RequestIDHeader)
	if rid == "" {
		rid = uuid.NewString()
		req.Header.Set(RequestIDHeader, rid)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return rid
}

func (c *Client) networkError(ctx context.Context, err error) error {
	apiErr := &APIError{
		Message:        networkMessage,
		IsNetworkError: true,
		cause:          err,
	}
	// A caller-cancelled context is not a connectivity problem worth a toast.
	if !errors.Is(ctx.Err(), context.Canceled) {
		c.notifier.Notify(notify.Toast{Level: notify.LevelError, Title: "Network error", Message: networkMessage})
	}
	return apiErr
}

// handleFailure is the response interceptor for non-2xx answers.
func (c *Client) handleFailure(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Message string              `json:"message"`
		Error   string              `json:"error"`
		Errors  map[string][]string `json:"errors"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		apiErr.Errors = body.Errors
		switch {
		case strings.TrimSpace(body.Message) != "":
			apiErr.Message = body.Message
			apiErr.fromServer = true
		case strings.TrimSpace(body.Error) != "":
			apiErr.Message = body.Error
			apiErr.fromServer = true
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = DefaultMessage(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if err := c.session.ClearAuth(); err != nil {
			c.logger.Error().Err(err).Msg("failed to clear session after 401")
		}
		c.notifier.Notify(notify.Toast{Level: notify.LevelWarning, Title: "Signed out", Message: DefaultMessage(http.StatusUnauthorized)})
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests:
		c.notifier.Notify(notify.Toast{Level: notify.LevelWarning, Message: apiErr.Message})
	case resp.StatusCode >= 500:
		c.notifier.Notify(notify.Toast{Level: notify.LevelError, Title: "Server error", Message: apiErr.Message})
	}
	return apiErr
}
