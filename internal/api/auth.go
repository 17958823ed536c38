package api

import (
	"context"
	"net/http"

	"github.com/gram-chat/gram/internal/store"
)

// Login asks the server to send a one-time code to the given address.
// Returns the normalized email the code was sent to.
func (c *Client) Login(ctx context.Context, email string) (string, error) {
	var resp struct {
		Email string `json:"email"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", false,
		map[string]string{"email": email}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Email, nil
}

// Verify exchanges the one-time code for the signed-in user.
func (c *Client) Verify(ctx context.Context, email, otp string) (*store.User, error) {
	var resp struct {
		User store.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/verify", false,
		map[string]string{"email": email, "otp": otp}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}
