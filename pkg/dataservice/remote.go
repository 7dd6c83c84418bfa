package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/grovetools/notifsync/errors"
	"github.com/grovetools/notifsync/pkg/models"
	"github.com/grovetools/notifsync/version"
)

const (
	pathAll     = "/api/notifications/admin"
	pathUnread  = "/api/notifications/admin/unread"
	pathCount   = "/api/notifications/admin/count"
	pathReadAll = "/api/notifications/admin/read-all"
)

// Remote implements Service against the admin REST API.
type Remote struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	onStatus   func(status int)
}

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.httpClient = c }
}

// WithStatusHook registers a callback invoked with the status code of every
// non-success response. The session layer uses it to react to 401.
func WithStatusHook(fn func(status int)) RemoteOption {
	return func(r *Remote) { r.onStatus = fn }
}

// NewRemote creates a client for the API rooted at baseURL.
func NewRemote(baseURL string, tokens TokenSource, timeout time.Duration, opts ...RemoteOption) *Remote {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &Remote{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchAll returns every admin notification.
func (c *Remote) FetchAll(ctx context.Context) ([]models.Notification, error) {
	return c.fetchList(ctx, pathAll)
}

// FetchUnread returns the unread admin notifications.
func (c *Remote) FetchUnread(ctx context.Context) ([]models.Notification, error) {
	return c.fetchList(ctx, pathUnread)
}

// FetchUnreadCount returns the server's unread counter.
func (c *Remote) FetchUnreadCount(ctx context.Context) (int, error) {
	body, err := c.do(ctx, http.MethodGet, pathCount)
	if err != nil {
		return 0, err
	}
	var payload struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeMalformedPayload, "failed to decode unread count")
	}
	if payload.Count == nil {
		return 0, errors.New(errors.ErrCodeMalformedPayload, "unread count response has no count")
	}
	return *payload.Count, nil
}

// MarkRead marks one notification read on the server.
func (c *Remote) MarkRead(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/notifications/%d/read", id))
	return err
}

// MarkAllRead marks every admin notification read on the server.
func (c *Remote) MarkAllRead(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPut, pathReadAll)
	return err
}

// Delete removes a notification on the server.
func (c *Remote) Delete(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/notifications/%d", id))
	return err
}

func (c *Remote) fetchList(ctx context.Context, path string) ([]models.Notification, error) {
	body, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	list, err := models.DecodeNotifications(body)
	if err != nil {
		return nil, errors.MalformedPayload(err).WithDetail("path", path)
	}
	return list, nil
}

func (c *Remote) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRequestFailed, fmt.Sprintf("%s %s failed", method, path)).
			WithDetail("method", method).
			WithDetail("path", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRequestFailed, "failed to read response body").
			WithDetail("path", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.onStatus != nil {
			c.onStatus(resp.StatusCode)
		}
		syncErr := errors.RequestFailed(method, path, resp.StatusCode)
		if msg := serverMessage(body); msg != "" {
			syncErr = syncErr.WithDetail("server_message", msg)
		}
		return nil, syncErr
	}
	return body, nil
}

// serverMessage extracts {"message": "..."} from an error body, if present.
func serverMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}
