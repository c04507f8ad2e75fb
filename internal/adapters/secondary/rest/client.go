package rest

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

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-realtime/internal/core/errors"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

// maxErrorBody caps how much of a failed response is kept in RequestError.
const maxErrorBody = 512

// Credentials supplies the bearer token and refreshes it after a 401.
type Credentials interface {
	AccessToken() string
	Refresh(ctx context.Context) (domain.Credential, error)
	Identity() (domain.Identity, error)
}

// Client is a thin HTTP client for the service-desk REST API. It handles
// bearer authentication, one refresh-and-retry on 401, and JSON bodies.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	logger     *slog.Logger
}

var (
	_ ports.NotificationAPI = (*Client)(nil)
	_ ports.TokenRefresher  = (*Client)(nil)
)

// NewClient creates a client for baseURL (for example http://host/api/v1).
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.Component(logger, "rest"),
	}
}

// WithCredentials attaches the credential source used for authenticated
// calls. The source itself uses this client to refresh, so it is bound
// after construction.
func (c *Client) WithCredentials(creds Credentials) *Client {
	c.creds = creds
	return c
}

// do builds the request, authenticates it and decodes the JSON response
// into result when result is non-nil.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	auth bool,
	body interface{},
	result interface{},
) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshaling request body: %w", op, err)
		}
		payload = data
	}

	resp, respBody, err := c.send(ctx, method, path, auth, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && auth && c.creds != nil {
		c.logger.DebugContext(ctx, "access token rejected, refreshing", "op", op)
		if _, refreshErr := c.creds.Refresh(ctx); refreshErr == nil {
			resp, respBody, err = c.send(ctx, method, path, auth, payload)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(respBody)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &apperrors.RequestError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(text)}
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, auth bool, payload []byte) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.creds != nil {
		if token := c.creds.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %v", apperrors.ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp, respBody, nil
}

// scope selects the role-specific notification routes and tags ctx with
// the caller's user id for logging.
func (c *Client) scope(ctx context.Context) (context.Context, string, error) {
	if c.creds == nil {
		return ctx, "", apperrors.ErrNoCredential
	}
	identity, err := c.creds.Identity()
	if err != nil {
		return ctx, "", err
	}
	ctx = logging.WithUserID(ctx, identity.UserID)
	if identity.IsPrivileged() {
		return ctx, "admin", nil
	}
	return ctx, "customer", nil
}

// ListNotifications fetches the caller's notification feed.
func (c *Client) ListNotifications(ctx context.Context) (*domain.NotificationPage, error) {
	ctx, scope, err := c.scope(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	var page domain.NotificationPage
	if err := c.do(ctx, "list notifications", http.MethodGet, "/"+scope+"/notifications", true, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// MarkNotificationRead marks one notification read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.ErrEntityIDRequired
	}
	ctx, scope, err := c.scope(ctx)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	path := fmt.Sprintf("/%s/notifications/%s/read", scope, url.PathEscape(id))
	return c.do(ctx, "mark notification read", http.MethodPost, path, true, nil, nil)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error) {
	var out refreshResponse
	if err := c.do(ctx, "refresh token", http.MethodPost, "/auth/refresh", false, refreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return domain.Credential{}, err
	}
	if out.AccessToken == "" {
		return domain.Credential{}, errors.New("refresh token: response carried no access token")
	}
	return domain.Credential{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}
