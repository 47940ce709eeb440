// Package api provides the HTTP implementation of the domain.APIClient
// interface.
//
// The data API is the request/response half of the server contract: it
// issues identities at login, serves the user directory, and returns
// decrypted conversation history. All requests are JSON over HTTP and
// accept a context for cancellation and deadlines. Non-2xx statuses are
// returned as errors wrapping domain.ErrRemoteRequest with the method,
// path, and status text to aid diagnostics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"safechat/internal/domain"
)

// Client talks to the data API at Base.
type Client struct {
	Base string
	HTTP *http.Client
}

// New returns a client for the API at base. A nil httpClient falls back to
// http.DefaultClient.
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{Base: base, HTTP: httpClient}
}

// RegisterOrLogin exchanges credentials for the caller's identity. The
// server registers unknown usernames and logs in known ones.
func (c *Client) RegisterOrLogin(ctx context.Context, username, password string) (domain.Identity, error) {
	var out domain.Identity
	in := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}
	if err := c.post(ctx, "/register-or-login", in, &out); err != nil {
		return domain.Identity{}, err
	}
	return out, nil
}

// ListUsers returns every known identity, the caller's own included.
func (c *Client) ListUsers(ctx context.Context) ([]domain.Identity, error) {
	var out []domain.Identity
	if err := c.getJSON(ctx, "/users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages returns the decrypted history between two users in server
// order.
func (c *Client) ListMessages(ctx context.Context, localID, peerID string) ([]domain.DisplayMessage, error) {
	var out []domain.DisplayMessage
	path := "/messages/" + url.PathEscape(localID) + "/" + url.PathEscape(peerID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", domain.ErrRemoteRequest, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: POST %s: %s", domain.ErrRemoteRequest, path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", domain.ErrRemoteRequest, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: GET %s: %s", domain.ErrRemoteRequest, path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ domain.APIClient = (*Client)(nil)
