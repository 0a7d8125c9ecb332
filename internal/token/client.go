package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jp-hoehmann/bun/internal/version"
)

// RoomData is the body of a token request.
type RoomData struct {
	Username           string `json:"username"`
	Role               string `json:"role"`
	Room               string `json:"room"`
	Type               string `json:"type"`
	MediaConfiguration string `json:"mediaConfiguration"`
}

// Client requests room tokens from the token backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the backend at baseURL, e.g.
// https://tanura.hhmn.de/nuve.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Create posts data to the createToken endpoint and returns the token.
func (c *Client) Create(ctx context.Context, data RoomData) (string, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createToken/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("token request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("token backend returned an empty token")
	}
	return token, nil
}
