// Package api is the HTTP client for the messaging server's REST surface.
// Every mutation in the app goes through here first; socket emits happen
// only after the server has acknowledged.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gram-chat/gram/internal/auth"
)

// Error is a server-rejected request, carrying the HTTP status and the
// server's message when it sent one.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("api: request failed (status %d)", e.StatusCode)
}

// Client talks to the messaging server. Bearer tokens are minted per
// request from the signed-in user id.
type Client struct {
	base   string
	http   *http.Client
	minter *auth.Minter
	logger *zap.Logger

	mu     sync.RWMutex
	userID string
}

// NewClient creates an API client rooted at the given base URL.
func NewClient(base string, minter *auth.Minter, logger *zap.Logger) *Client {
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: 15 * time.Second},
		minter: minter,
		logger: logger,
	}
}

// SetUserID installs the signed-in user id used to mint request tokens.
func (c *Client) SetUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

func (c *Client) currentUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// do performs one JSON request/response round trip. A nil in skips the
// request body; a nil out discards the response body. When authorized is
// set, a fresh bearer token is minted from the current user id.
func (c *Client) do(ctx context.Context, method, path string, authorized bool, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		token, err := c.minter.Mint(c.currentUserID())
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var serverErr struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&serverErr); err == nil {
			apiErr.Message = serverErr.Message
		}
		c.logger.Warn("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
