package api

import (
	"context"
	"net/http"

	"github.com/gram-chat/gram/internal/store"
)

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	FirstName         *string `json:"firstName,omitempty"`
	LastName          *string `json:"lastName,omitempty"`
	Bio               *string `json:"bio,omitempty"`
	Avatar            *string `json:"avatar,omitempty"`
	Muted             *bool   `json:"muted,omitempty"`
	NotificationSound *string `json:"notificationSound,omitempty"`
	SendingSound      *string `json:"sendingSound,omitempty"`
}

// Contacts fetches the current user's contact list.
func (c *Client) Contacts(ctx context.Context) ([]store.User, error) {
	var resp struct {
		Contacts []store.User `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/contacts", true, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

// AddContact establishes a conversation with the user behind the email.
func (c *Client) AddContact(ctx context.Context, email string) (*store.User, error) {
	var resp struct {
		Contact store.User `json:"contact"`
	}
	err := c.do(ctx, http.MethodPost, "/api/user/contact", true,
		map[string]string{"email": email}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Contact, nil
}

// UpdateProfile applies a partial profile update and returns the result.
func (c *Client) UpdateProfile(ctx context.Context, patch ProfilePatch) (*store.User, error) {
	var resp store.User
	if err := c.do(ctx, http.MethodPut, "/api/user/profile", true, patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendEmailOTP asks the server to send a change-of-address code to the
// new email.
func (c *Client) SendEmailOTP(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/user/send-otp", true,
		map[string]string{"email": email}, nil)
}

// UpdateEmail commits an address change using the code sent to it.
// The server invalidates the session afterwards; callers must sign out.
func (c *Client) UpdateEmail(ctx context.Context, email, otp string) error {
	return c.do(ctx, http.MethodPut, "/api/user/email", true,
		map[string]string{"email": email, "otp": otp}, nil)
}

// DeleteAccount permanently removes the current user server-side.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/user", true, nil, nil)
}
