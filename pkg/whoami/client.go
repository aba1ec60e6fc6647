// Package whoami is a small client for the identity endpoints every process
// shares: GET /me and the permission catalog.
package whoami

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"labinventory/pkg/rbac"
)

// ErrNoIdentity is returned when the endpoint answers anything but 200.
var ErrNoIdentity = errors.New("no identity")

// User is the caller as reported by GET /me
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Me is the data payload of GET /me
type Me struct {
	User        User     `json:"user"`
	Permissions []string `json:"permissions"`
}

type envelope[T any] struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Data       T      `json:"data"`
	Error      string `json:"error"`
}

// Client talks to the identity endpoints of the API server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client rooted at baseURL (e.g. http://localhost:8080)
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Me returns the caller identified by token
func (c *Client) Me(ctx context.Context, token string) (*Me, error) {
	var out envelope[Me]
	if err := c.get(ctx, "/me", token, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Catalog fetches the permission catalog the server evaluates against
func (c *Client) Catalog(ctx context.Context, token string) (*rbac.Catalog, error) {
	var out envelope[rbac.Document]
	if err := c.get(ctx, "/api/permissions/catalog", token, &out); err != nil {
		return nil, err
	}
	return rbac.FromDocument(out.Data)
}

func (c *Client) get(ctx context.Context, path, token string, out interface{}) error {
	if token == "" {
		return ErrNoIdentity
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s returned status %d", ErrNoIdentity, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
